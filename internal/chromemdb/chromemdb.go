package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docqa/internal/models"
)

const (
	collectionName = "chunks"

	metaChunkIndex = "chunk_index"
	metaFileID     = "file_id"
	metaUserID     = "user_id"
	metaPage       = "page"
	metaSourcePath = "source_path"
)

// VectorDBManager encapsulates the chromem-go operations for one
// (user, file) store.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
	embed         chromem.EmbeddingFunc
}

func newVectorDBManager(dbPath string, compress bool, encryptionKey string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	c, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	return &VectorDBManager{
		db:            db,
		collection:    c,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      dbPath + "/" + collectionName + ".chromem",
		embed:         embed,
	}, nil
}

// Count returns the number of stored chunks.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// AddChunks stores chunks with their precomputed embeddings. The document ID
// is always the chunk index, whatever ch.ID holds, so GetAllChunks can walk
// the ids 0..n-1 and later lookups never depend on content.
func (m *VectorDBManager) AddChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(vectors))
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(ch.ChunkIndex),
			Content:   ch.Content,
			Metadata:  chunkMetadata(ch),
			Embedding: vectors[i],
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// SimilaritySearchWithScores returns up to k chunks ordered by cosine
// similarity, with scores clamped to [0,1].
func (m *VectorDBManager) SimilaritySearchWithScores(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("query must be provided")
	}
	n := min(k, m.collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := m.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	scored := make([]models.ScoredChunk, 0, len(results))
	for _, r := range results {
		scored = append(scored, models.ScoredChunk{
			Chunk: chunkFromDocument(r.ID, r.Content, r.Metadata),
			Score: clamp01(float64(r.Similarity)),
		})
	}
	return scored, nil
}

// GetAllChunks returns the whole corpus ordered by chunk index. Stores are
// written with contiguous ids 0..n-1, so each id is fetched directly.
func (m *VectorDBManager) GetAllChunks(ctx context.Context) ([]models.Chunk, error) {
	count := m.collection.Count()
	chunks := make([]models.Chunk, 0, count)
	for i := 0; i < count; i++ {
		doc, err := m.collection.GetByID(ctx, strconv.Itoa(i))
		if err != nil {
			log.Warn().Err(err).Int("chunk_index", i).Str("path", m.dbPath).Msg("Chunk missing from store")
			continue
		}
		chunks = append(chunks, chunkFromDocument(doc.ID, doc.Content, doc.Metadata))
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks, nil
}

// export to file
func (m *VectorDBManager) Export(ctx context.Context) (string, error) {
	if m.encryptionKey == "" {
		return "", fmt.Errorf("encryption key is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return "", fmt.Errorf("failed to export database: %w", err)
	}
	return m.filePath, nil
}

// Import replaces the collection with the one exported to filePath.
func (m *VectorDBManager) Import(ctx context.Context, filePath string) error {
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(collectionName, m.embed)
	if c == nil {
		return fmt.Errorf("import %s has no %q collection", filePath, collectionName)
	}
	m.collection = c
	return nil
}

func chunkMetadata(ch models.Chunk) map[string]string {
	meta := map[string]string{
		metaChunkIndex: strconv.Itoa(ch.ChunkIndex),
		metaFileID:     strconv.FormatInt(ch.FileID, 10),
		metaUserID:     strconv.FormatInt(ch.UserID, 10),
		metaSourcePath: ch.SourcePath,
	}
	if ch.Page != nil {
		meta[metaPage] = strconv.Itoa(*ch.Page)
	}
	return meta
}

func chunkFromDocument(id, content string, meta map[string]string) models.Chunk {
	ch := models.Chunk{
		ID:         id,
		Content:    content,
		SourcePath: meta[metaSourcePath],
	}
	ch.ChunkIndex, _ = strconv.Atoi(meta[metaChunkIndex])
	ch.FileID, _ = strconv.ParseInt(meta[metaFileID], 10, 64)
	ch.UserID, _ = strconv.ParseInt(meta[metaUserID], 10, 64)
	if p, err := strconv.Atoi(meta[metaPage]); err == nil {
		ch.Page = &p
	}
	return ch
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
