package summarizer

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/language"
	"docqa/internal/models"
	"docqa/internal/rag"
)

type fakeRepo struct {
	docs   map[int64]*db.Document
	cached map[int64]*db.DocumentSummary
	saves  int
}

func (r *fakeRepo) GetDocument(_ context.Context, userID, documentID int64) (*db.Document, error) {
	d, ok := r.docs[documentID]
	if !ok || d.UserID != userID {
		return nil, models.ErrNotFound
	}
	return d, nil
}

func (r *fakeRepo) GetSummary(_ context.Context, documentID int64) (*db.DocumentSummary, error) {
	s, ok := r.cached[documentID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) SaveSummary(_ context.Context, s *db.DocumentSummary) error {
	r.saves++
	r.cached[s.DocumentID] = s
	return nil
}

type chunkStore struct {
	chunks []models.Chunk
}

func (s chunkStore) SimilaritySearchWithScores(context.Context, string, int) ([]models.ScoredChunk, error) {
	return nil, nil
}

func (s chunkStore) GetAllChunks(context.Context) ([]models.Chunk, error) {
	return s.chunks, nil
}

type storeMap map[int64]chunkStore

func (m storeMap) OpenStore(_, fileID int64) (rag.VectorStore, error) {
	s, ok := m[fileID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func (m storeMap) CreateStore(int64, int64) (rag.ChunkWriter, error) {
	panic("not used")
}

func newTestService(t *testing.T, llm *countingCompleter, chunkCount int) (*Service, *fakeRepo) {
	t.Helper()
	var chunks []models.Chunk
	for i := 0; i < chunkCount; i++ {
		content := strconv.Itoa(i) + " " + strings.Repeat("word ", 500)
		chunks = append(chunks, models.Chunk{ID: strconv.Itoa(i), ChunkIndex: i, Content: content})
	}
	repo := &fakeRepo{
		docs:   map[int64]*db.Document{42: {ID: 42, UserID: 7, Filename: "manual.pdf"}},
		cached: map[int64]*db.DocumentSummary{},
	}
	cfg := config.Default().Summary
	cfg.ExactDedup = true
	s := New(llm, language.NewSelector(fixedDetector("en"), "en", "ro"), &cfg)
	return NewService(repo, storeMap{42: {chunks: chunks}}, s, NewRegistry(), &cfg), repo
}

func TestServiceSummarizeAndCache(t *testing.T) {
	llm := &countingCompleter{}
	svc, repo := newTestService(t, llm, 6)

	res, err := svc.Summarize(context.Background(), 7, 42, false)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryCompleted, res.Status)
	assert.Equal(t, "manual.pdf", res.DocumentTitle)
	assert.Equal(t, 6, res.Metrics.ChunkCount)
	assert.Greater(t, res.Metrics.TotalCharacters, 6*2500)
	assert.False(t, res.Metrics.Cached)
	assert.True(t, strings.HasPrefix(res.TaskID, "7_42_"))
	assert.Equal(t, 1, repo.saves)
	calls := llm.calls()
	assert.Greater(t, calls, 2)

	again, err := svc.Summarize(context.Background(), 7, 42, false)
	require.NoError(t, err)
	assert.True(t, again.Metrics.Cached)
	assert.Equal(t, res.Summary, again.Summary)
	assert.Equal(t, calls, llm.calls())

	refreshed, err := svc.Summarize(context.Background(), 7, 42, true)
	require.NoError(t, err)
	assert.False(t, refreshed.Metrics.Cached)
	assert.Greater(t, llm.calls(), calls)
	assert.Empty(t, svc.Active(7))
}

func TestServiceCancelReturnsCanceledStatus(t *testing.T) {
	llm := &countingCompleter{}
	svc, repo := newTestService(t, llm, 6)

	task := svc.Start(7, 42)
	require.Len(t, svc.Active(7), 1)
	assert.ErrorIs(t, svc.Cancel(8, task.ID), models.ErrNotFound)
	require.NoError(t, svc.Cancel(7, task.ID))

	res, err := svc.Run(context.Background(), task, false)
	require.NoError(t, err)
	assert.Equal(t, models.SummaryCanceled, res.Status)
	assert.Empty(t, res.Summary)
	assert.Zero(t, llm.calls())
	assert.Zero(t, repo.saves)
	assert.Empty(t, svc.Active(7))
}

func TestServiceCancelWhileRunning(t *testing.T) {
	llm := &countingCompleter{}
	svc, _ := newTestService(t, llm, 6)
	task := svc.Start(7, 42)
	llm.onCall = func(n int) {
		if n == 1 {
			assert.NoError(t, svc.Cancel(7, task.ID))
		}
	}

	done := make(chan *models.SummaryResult, 1)
	go func() {
		res, err := svc.Run(context.Background(), task, true)
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case res := <-done:
		assert.Equal(t, models.SummaryCanceled, res.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("summary did not stop after cancel")
	}
	assert.Equal(t, 1, llm.calls())
}

func TestServiceNotFoundCleansUp(t *testing.T) {
	svc, _ := newTestService(t, &countingCompleter{}, 1)

	_, err := svc.Summarize(context.Background(), 8, 42, false)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Zero(t, svc.registry.Len())
}

func TestServiceGenerationErrorCleansUp(t *testing.T) {
	svc, repo := newTestService(t, &countingCompleter{failAt: 1}, 6)

	_, err := svc.Summarize(context.Background(), 7, 42, true)
	assert.ErrorIs(t, err, models.ErrGeneration)
	assert.Zero(t, svc.registry.Len())
	assert.Zero(t, repo.saves)
}
