// Package memory keeps a bounded window of recent turns per conversation.
package memory

import (
	"strings"
	"sync"
	"time"

	"docqa/internal/models"
)

// Window holds the last Exchanges question/answer pairs of one
// conversation. It is safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	maxTurns int
	turns    []models.Turn
	lastUsed time.Time
}

func NewWindow(exchanges int) *Window {
	if exchanges <= 0 {
		exchanges = 1
	}
	return &Window{maxTurns: 2 * exchanges, lastUsed: time.Now()}
}

// Append records one exchange, evicting the oldest turns past the cap.
func (w *Window) Append(question, answer string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.push(models.Turn{Speaker: models.SpeakerUser, Text: question})
	w.push(models.Turn{Speaker: models.SpeakerAssistant, Text: answer})
	w.lastUsed = time.Now()
}

func (w *Window) push(t models.Turn) {
	w.turns = append(w.turns, t)
	if over := len(w.turns) - w.maxTurns; over > 0 {
		w.turns = append(w.turns[:0:0], w.turns[over:]...)
	}
}

// replay loads persisted turns in timestamp order.
func (w *Window) replay(turns []models.Turn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range turns {
		w.push(t)
	}
}

// Turns returns a copy of the window, oldest first.
func (w *Window) Turns() []models.Turn {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Render lists the turns newest first, one "User:"/"Assistant:" line each.
// An empty window renders as "".
func (w *Window) Render() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastUsed = time.Now()

	var b strings.Builder
	for i := len(w.turns) - 1; i >= 0; i-- {
		t := w.turns[i]
		if t.Speaker == models.SpeakerAssistant {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(t.Text)
		if i > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (w *Window) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastUsed
}
