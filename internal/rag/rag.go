package rag

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"docqa/internal/chromemdb"
	"docqa/internal/db"
	"docqa/internal/memory"
	"docqa/internal/models"
)

const conversationTitleLength = 50

// Repository is the relational side of asking and ingesting.
type Repository interface {
	CreateDocument(ctx context.Context, doc *db.Document) error
	GetDocument(ctx context.Context, userID, documentID int64) (*db.Document, error)
	CreateConversation(ctx context.Context, userID, documentID int64, title string) (*db.Conversation, error)
	AddExchange(ctx context.Context, conversationID int64, question, answer string, askedAt time.Time) error
}

// ChunkWriter is a freshly created store being filled by ingestion.
type ChunkWriter interface {
	AddChunks(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
}

// StoreProvider opens and creates the per (user, file) vector stores.
type StoreProvider interface {
	OpenStore(userID, fileID int64) (VectorStore, error)
	CreateStore(userID, fileID int64) (ChunkWriter, error)
}

type chromemStores struct {
	p *chromemdb.Provider
}

// ChromemStores serves stores from a chromem-go provider.
func ChromemStores(p *chromemdb.Provider) StoreProvider {
	return chromemStores{p: p}
}

func (s chromemStores) OpenStore(userID, fileID int64) (VectorStore, error) {
	m, err := s.p.Open(userID, fileID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s chromemStores) CreateStore(userID, fileID int64) (ChunkWriter, error) {
	m, err := s.p.Create(userID, fileID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Question is one ask request. ConversationID 0 starts a new conversation.
type Question struct {
	UserID         int64
	FileID         int64
	Text           string
	ConversationID int64
}

// RAG answers questions about a user's documents.
type RAG struct {
	repo      Repository
	stores    StoreProvider
	retriever *Retriever
	composer  *Composer
	memory    *memory.Manager
	topK      int
}

func NewRAG(repo Repository, stores StoreProvider, retriever *Retriever, composer *Composer, mem *memory.Manager, topK int) *RAG {
	return &RAG{
		repo:      repo,
		stores:    stores,
		retriever: retriever,
		composer:  composer,
		memory:    mem,
		topK:      topK,
	}
}

// Query retrieves passages for q, answers with the conversation's memory
// and persists the exchange.
func (r *RAG) Query(ctx context.Context, q Question) (*models.Answer, error) {
	answer, err := r.query(ctx, q)
	questionsTotal.WithLabelValues(resultLabel(err)).Inc()
	return answer, err
}

func (r *RAG) query(ctx context.Context, q Question) (*models.Answer, error) {
	askedAt := time.Now()
	logger := log.With().Int64("user_id", q.UserID).Int64("file_id", q.FileID).Logger()

	doc, err := r.repo.GetDocument(ctx, q.UserID, q.FileID)
	if err != nil {
		return nil, err
	}

	var window *memory.Window
	if q.ConversationID != 0 {
		if window, err = r.memory.GetOrCreate(ctx, q.UserID, q.ConversationID); err != nil {
			return nil, err
		}
	}

	store, err := r.stores.OpenStore(q.UserID, q.FileID)
	if err != nil {
		return nil, err
	}
	candidates, err := r.retriever.Retrieve(ctx, store, q.Text, r.topK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logger.Info().Str("document", doc.Filename).Msg("No passages retrieved")
		return nil, models.ErrRetrievalEmpty
	}

	conversationID := q.ConversationID
	if conversationID == 0 {
		conv, err := r.repo.CreateConversation(ctx, q.UserID, q.FileID, preview(q.Text, conversationTitleLength))
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
		if window, err = r.memory.GetOrCreate(ctx, q.UserID, conversationID); err != nil {
			return nil, err
		}
	}

	var mem Memory
	if window != nil {
		mem = window
	}
	answer, err := r.composer.Compose(ctx, q.Text, candidates, mem)
	if err != nil {
		return nil, err
	}
	answer.ConversationID = conversationID

	if err := r.repo.AddExchange(ctx, conversationID, q.Text, answer.Answer, askedAt); err != nil {
		logger.Error().Err(err).Int64("conversation_id", conversationID).Msg("Failed to persist exchange")
	}

	logger.Info().
		Int64("conversation_id", conversationID).
		Int("chunks", answer.TotalChunksUsed).
		Dur("elapsed", time.Since(askedAt)).
		Msg("Answered question")
	return answer, nil
}

// Debug returns the raw ranking of one strategy without calling the model.
func (r *RAG) Debug(ctx context.Context, userID, fileID int64, query, strategy string, k int) ([]models.ScoredCandidate, error) {
	if _, err := r.repo.GetDocument(ctx, userID, fileID); err != nil {
		return nil, err
	}
	store, err := r.stores.OpenStore(userID, fileID)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = r.topK
	}
	return r.retriever.RetrieveWith(ctx, strategy, store, query, k)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrRetrievalEmpty):
		return "empty"
	case errors.Is(err, models.ErrGeneration):
		return "generation_error"
	default:
		return "error"
	}
}
