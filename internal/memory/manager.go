package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/models"
)

// History is the persisted side of conversations.
type History interface {
	// OwnsConversation returns models.ErrNotFound unless userID owns the conversation.
	OwnsConversation(ctx context.Context, userID, conversationID int64) error
	// ConversationTurns returns every persisted turn in timestamp order.
	ConversationTurns(ctx context.Context, conversationID int64) ([]models.Turn, error)
}

// Manager maps conversation ids to their windows. Windows idle for longer
// than the TTL are dropped by Sweep and rehydrated on next use.
type Manager struct {
	history   History
	exchanges int
	idleTTL   time.Duration
	sweep     time.Duration
	windows   *xsync.MapOf[int64, *Window]
}

func NewManager(history History, cfg *config.MemoryConfig) *Manager {
	return &Manager{
		history:   history,
		exchanges: cfg.Exchanges,
		idleTTL:   cfg.IdleTTL.Duration(),
		sweep:     cfg.SweepInterval.Duration(),
		windows:   xsync.NewMapOf[int64, *Window](),
	}
}

// GetOrCreate returns the window of a conversation owned by userID. The
// ownership check runs on every call, cached or not.
func (m *Manager) GetOrCreate(ctx context.Context, userID, conversationID int64) (*Window, error) {
	if err := m.history.OwnsConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if w, ok := m.windows.Load(conversationID); ok {
		return w, nil
	}

	turns, err := m.history.ConversationTurns(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %d: %w", conversationID, err)
	}
	w := NewWindow(m.exchanges)
	w.replay(turns)

	actual, loaded := m.windows.LoadOrStore(conversationID, w)
	if !loaded {
		activeWindows.Inc()
		log.Debug().Int64("conversation_id", conversationID).Int("turns", len(turns)).Msg("Rehydrated conversation memory")
	}
	return actual, nil
}

// Forget drops a conversation's window, e.g. after the conversation is deleted.
func (m *Manager) Forget(conversationID int64) {
	if _, ok := m.windows.LoadAndDelete(conversationID); ok {
		activeWindows.Dec()
	}
}

// Len is the number of windows held.
func (m *Manager) Len() int {
	return m.windows.Size()
}

// Sweep drops windows unused since now minus the idle TTL and returns how
// many were dropped.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTTL)
	dropped := 0
	m.windows.Range(func(id int64, w *Window) bool {
		if w.idleSince().Before(cutoff) {
			m.windows.Compute(id, func(cur *Window, loaded bool) (*Window, bool) {
				// only delete if nobody swapped in a new window meanwhile
				if loaded && cur == w {
					dropped++
					return nil, true
				}
				return cur, !loaded
			})
		}
		return true
	})
	if dropped > 0 {
		activeWindows.Sub(float64(dropped))
		log.Debug().Int("dropped", dropped).Msg("Swept idle conversation memory")
	}
	return dropped
}

// Run sweeps on every interval tick until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.sweep <= 0 || m.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(m.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}
