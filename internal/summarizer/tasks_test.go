package summarizer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/models"
)

func TestTokenCancelIsIdempotent(t *testing.T) {
	tok := NewToken()
	assert.False(t, tok.Canceled())

	tok.Cancel()
	tok.Cancel()
	assert.True(t, tok.Canceled())
	select {
	case <-tok.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestNewTaskID(t *testing.T) {
	at := time.Unix(0, 1700000000123456789)
	assert.Equal(t, "7_42_1700000000123456789", NewTaskID(7, 42, at))
}

func TestRegistryCancelOwnership(t *testing.T) {
	r := NewRegistry()
	task := r.Start(1, 42)

	assert.ErrorIs(t, r.Cancel(12, task.ID), models.ErrNotFound)
	assert.ErrorIs(t, r.Cancel(2, task.ID), models.ErrNotFound)
	assert.False(t, task.Token.Canceled())

	require.NoError(t, r.Cancel(1, task.ID))
	assert.True(t, task.Token.Canceled())

	assert.ErrorIs(t, r.Cancel(1, "1_42_0"), models.ErrNotFound)
}

func TestRegistryFinishAndList(t *testing.T) {
	r := NewRegistry()
	a := r.Start(1, 10)
	b := r.Start(1, 11)
	r.Start(2, 12)

	list := r.List(1)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].TaskID)
	assert.Equal(t, int64(11), list[1].DocumentID)
	assert.Empty(t, r.List(3))

	r.Finish(a.ID)
	r.Finish(b.ID)
	r.Finish(b.ID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryUniqueIDsUnderContention(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Start(1, 1).ID
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], id)
		seen[id] = true
	}
	assert.Equal(t, 50, r.Len())
}
