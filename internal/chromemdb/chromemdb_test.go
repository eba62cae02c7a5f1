package chromemdb

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/models"
)

// letterEmbedding is a bag-of-letters vector, enough to make similarity
// follow shared vocabulary.
func letterEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 27)
	v[26] = 0.01
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	return NewProvider(&config.RAGConfig{
		StoreRoot:      t.TempDir(),
		StoreCacheSize: 4,
		StoreCacheTTL:  config.Duration(time.Minute),
	}, letterEmbedding)
}

func seedStore(t *testing.T, p *Provider, texts ...string) *VectorDBManager {
	t.Helper()
	ctx := context.Background()
	m, err := p.Create(7, 42)
	require.NoError(t, err)

	page := 3
	chunks := make([]models.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{ID: "", Content: text, ChunkIndex: i, FileID: 42, UserID: 7, SourcePath: "doc.txt"}
		if i == 0 {
			chunks[i].Page = &page
		}
		vectors[i], _ = letterEmbedding(ctx, text)
	}
	require.NoError(t, m.AddChunks(ctx, chunks, vectors))
	return m
}

func TestOpenMissingStore(t *testing.T) {
	p := newTestProvider(t)
	_, err := p.Open(1, 2)
	require.ErrorIs(t, err, ErrStoreNotFound)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetAllChunksOrderedWithMetadata(t *testing.T) {
	p := newTestProvider(t)
	seedStore(t, p, "alpha beta", "gamma delta", "epsilon zeta")

	p.Invalidate(7, 42)
	m, err := p.Open(7, 42)
	require.NoError(t, err)

	chunks, err := m.GetAllChunks(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, int64(42), ch.FileID)
		assert.Equal(t, int64(7), ch.UserID)
	}
	require.NotNil(t, chunks[0].Page)
	assert.Equal(t, 3, *chunks[0].Page)
	assert.Nil(t, chunks[1].Page)
	assert.Equal(t, "gamma delta", chunks[1].Content)
}

func TestSimilaritySearchWithScores(t *testing.T) {
	p := newTestProvider(t)
	m := seedStore(t, p, "aaaa aaaa", "zzzz zzzz", "mmmm nnnn")

	results, err := m.SimilaritySearchWithScores(context.Background(), "zzz", 10)
	require.NoError(t, err)
	require.Len(t, results, 3, "k larger than the corpus is clamped")
	assert.Equal(t, "zzzz zzzz", results[0].Chunk.Content)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestSimilaritySearchEmptyStore(t *testing.T) {
	p := newTestProvider(t)
	m, err := p.Create(1, 1)
	require.NoError(t, err)

	results, err := m.SimilaritySearchWithScores(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAddChunksLengthMismatch(t *testing.T) {
	p := newTestProvider(t)
	m, err := p.Create(1, 1)
	require.NoError(t, err)

	err = m.AddChunks(context.Background(), []models.Chunk{{Content: "x"}}, nil)
	assert.Error(t, err)
}

func TestExportRequiresKey(t *testing.T) {
	p := newTestProvider(t)
	m, err := p.Create(1, 1)
	require.NoError(t, err)

	_, err = m.Export(context.Background())
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	key := strings.Repeat("k", 32)

	src, err := newVectorDBManager(t.TempDir(), true, key, letterEmbedding)
	require.NoError(t, err)
	chunks := []models.Chunk{
		{ID: "0", Content: "alpha beta", ChunkIndex: 0},
		{ID: "1", Content: "gamma delta", ChunkIndex: 1},
	}
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		vectors[i], _ = letterEmbedding(ctx, ch.Content)
	}
	require.NoError(t, src.AddChunks(ctx, chunks, vectors))

	path, err := src.Export(ctx)
	require.NoError(t, err)

	dst, err := newVectorDBManager(t.TempDir(), true, key, letterEmbedding)
	require.NoError(t, err)
	require.NoError(t, dst.Import(ctx, path))

	assert.Equal(t, 2, dst.Count())
	got, err := dst.GetAllChunks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gamma delta", got[1].Content)
}

func TestAddChunksKeysByChunkIndex(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(t)
	m, err := p.Create(7, 43)
	require.NoError(t, err)

	chunks := []models.Chunk{
		{ID: "intro", Content: "alpha beta", ChunkIndex: 0},
		{ID: "body", Content: "gamma delta", ChunkIndex: 1},
	}
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		vectors[i], _ = letterEmbedding(ctx, ch.Content)
	}
	require.NoError(t, m.AddChunks(ctx, chunks, vectors))

	got, err := m.GetAllChunks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0", got[0].ID)
	assert.Equal(t, "alpha beta", got[0].Content)
	assert.Equal(t, "1", got[1].ID)
	assert.Equal(t, "gamma delta", got[1].Content)
}
