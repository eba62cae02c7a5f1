package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/models"
)

type fakeHistory struct {
	mu     sync.Mutex
	owners map[int64]int64
	turns  map[int64][]models.Turn
	loads  int
}

func (f *fakeHistory) OwnsConversation(_ context.Context, userID, conversationID int64) error {
	if owner, ok := f.owners[conversationID]; !ok || owner != userID {
		return models.ErrNotFound
	}
	return nil
}

func (f *fakeHistory) ConversationTurns(_ context.Context, conversationID int64) ([]models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.turns[conversationID], nil
}

func testConfig() *config.MemoryConfig {
	return &config.MemoryConfig{
		Exchanges:     5,
		IdleTTL:       config.Duration(30 * time.Minute),
		SweepInterval: config.Duration(time.Minute),
	}
}

func TestWindowKeepsLastFiveExchanges(t *testing.T) {
	w := NewWindow(5)
	for i := 1; i <= 12; i++ {
		w.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	turns := w.Turns()
	require.Len(t, turns, 10)
	assert.Equal(t, models.Turn{Speaker: models.SpeakerUser, Text: "q8"}, turns[0])
	assert.Equal(t, models.Turn{Speaker: models.SpeakerAssistant, Text: "a12"}, turns[9])
}

func TestWindowRenderNewestFirst(t *testing.T) {
	w := NewWindow(5)
	assert.Equal(t, "", w.Render())

	w.Append("first question", "first answer")
	w.Append("second question", "second answer")

	want := "Assistant: second answer\nUser: second question\nAssistant: first answer\nUser: first question"
	assert.Equal(t, want, w.Render())
}

func TestManagerRehydratesFromHistory(t *testing.T) {
	var persisted []models.Turn
	for i := 1; i <= 7; i++ {
		persisted = append(persisted,
			models.Turn{Speaker: models.SpeakerUser, Text: fmt.Sprintf("q%d", i)},
			models.Turn{Speaker: models.SpeakerAssistant, Text: fmt.Sprintf("a%d", i)},
		)
	}
	h := &fakeHistory{
		owners: map[int64]int64{10: 1},
		turns:  map[int64][]models.Turn{10: persisted},
	}
	m := NewManager(h, testConfig())

	w, err := m.GetOrCreate(context.Background(), 1, 10)
	require.NoError(t, err)
	turns := w.Turns()
	require.Len(t, turns, 10)
	assert.Equal(t, "q3", turns[0].Text)

	again, err := m.GetOrCreate(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Same(t, w, again)
	assert.Equal(t, 1, h.loads)
	assert.Equal(t, 1, m.Len())
}

func TestManagerRejectsForeignConversation(t *testing.T) {
	h := &fakeHistory{owners: map[int64]int64{10: 1}}
	m := NewManager(h, testConfig())

	_, err := m.GetOrCreate(context.Background(), 1, 10)
	require.NoError(t, err)

	// cached windows are still guarded
	_, err = m.GetOrCreate(context.Background(), 2, 10)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = m.GetOrCreate(context.Background(), 1, 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestManagerConcurrentAppend(t *testing.T) {
	h := &fakeHistory{owners: map[int64]int64{10: 1}}
	m := NewManager(h, testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := m.GetOrCreate(context.Background(), 1, 10)
			if err != nil {
				t.Error(err)
				return
			}
			w.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		}(i)
	}
	wg.Wait()

	w, err := m.GetOrCreate(context.Background(), 1, 10)
	require.NoError(t, err)
	turns := w.Turns()
	require.Len(t, turns, 10)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, models.SpeakerUser, turns[i].Speaker)
		assert.Equal(t, "a"+turns[i].Text[1:], turns[i+1].Text)
	}
}

func TestManagerSweepAndForget(t *testing.T) {
	h := &fakeHistory{owners: map[int64]int64{10: 1, 11: 1}}
	m := NewManager(h, testConfig())

	_, err := m.GetOrCreate(context.Background(), 1, 10)
	require.NoError(t, err)
	_, err = m.GetOrCreate(context.Background(), 1, 11)
	require.NoError(t, err)

	assert.Equal(t, 0, m.Sweep(time.Now()))
	assert.Equal(t, 2, m.Sweep(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, m.Len())

	_, err = m.GetOrCreate(context.Background(), 1, 10)
	require.NoError(t, err)
	m.Forget(10)
	assert.Equal(t, 0, m.Len())
}
