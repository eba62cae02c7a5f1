package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/parser"
)

// Ingester parses a file, records it and writes its chunks to a new store.
type Ingester struct {
	repo     Repository
	stores   StoreProvider
	embedder embeddings.Embedder
	parser   *parser.Parser
}

func NewIngester(repo Repository, stores StoreProvider, embedder embeddings.Embedder, p *parser.Parser) *Ingester {
	return &Ingester{repo: repo, stores: stores, embedder: embedder, parser: p}
}

// Ingest stores the document at path for userID and returns it with the
// number of chunks written.
func (i *Ingester) Ingest(ctx context.Context, userID int64, path string) (*db.Document, int, error) {
	start := time.Now()

	sections, err := parser.ParseDocument(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(sections) == 0 {
		return nil, 0, fmt.Errorf("no text extracted from %s", path)
	}

	doc := &db.Document{
		Filename: filepath.Base(path),
		Content:  parser.JoinSections(sections),
		UserID:   userID,
	}
	if err := i.repo.CreateDocument(ctx, doc); err != nil {
		return nil, 0, fmt.Errorf("failed to store document: %w", err)
	}

	chunks := i.parser.Chunk(sections, userID, doc.ID, path)
	texts := make([]string, len(chunks))
	for j, ch := range chunks {
		texts[j] = ch.Content
	}
	vectors, err := embedding.GenerateEmbedding(ctx, i.embedder, texts)
	if err != nil {
		return nil, 0, err
	}

	store, err := i.stores.CreateStore(userID, doc.ID)
	if err != nil {
		return nil, 0, err
	}
	if err := store.AddChunks(ctx, chunks, vectors); err != nil {
		return nil, 0, err
	}
	chunksIngested.Add(float64(len(chunks)))

	log.Info().
		Int64("user_id", userID).
		Int64("document_id", doc.ID).
		Str("file", doc.Filename).
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(start)).
		Msg("Ingested document")
	return doc, len(chunks), nil
}
