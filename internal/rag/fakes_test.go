package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"docqa/internal/db"
	"docqa/internal/models"
)

type fakeStore struct {
	corpus []models.Chunk
	hits   []models.ScoredChunk
	err    error
}

func (s *fakeStore) SimilaritySearchWithScores(_ context.Context, _ string, k int) ([]models.ScoredChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.ScoredChunk, 0, k)
	for _, h := range s.hits {
		if len(out) == k {
			break
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *fakeStore) GetAllChunks(context.Context) ([]models.Chunk, error) {
	return s.corpus, nil
}

type writtenStore struct {
	chunks  []models.Chunk
	vectors [][]float32
}

func (w *writtenStore) AddChunks(_ context.Context, chunks []models.Chunk, vectors [][]float32) error {
	w.chunks = chunks
	w.vectors = vectors
	return nil
}

type fakeStores struct {
	stores  map[[2]int64]VectorStore
	created map[[2]int64]*writtenStore
}

func (f *fakeStores) OpenStore(userID, fileID int64) (VectorStore, error) {
	s, ok := f.stores[[2]int64{userID, fileID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func (f *fakeStores) CreateStore(userID, fileID int64) (ChunkWriter, error) {
	if f.created == nil {
		f.created = make(map[[2]int64]*writtenStore)
	}
	w := &writtenStore{}
	f.created[[2]int64{userID, fileID}] = w
	return w, nil
}

type exchange struct {
	conversationID   int64
	question, answer string
}

// fakeRepo doubles as the memory manager's history.
type fakeRepo struct {
	mu            sync.Mutex
	documents     map[int64]*db.Document
	conversations map[int64]*db.Conversation
	exchanges     []exchange
	nextID        int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		documents:     make(map[int64]*db.Document),
		conversations: make(map[int64]*db.Conversation),
		nextID:        100,
	}
}

func (r *fakeRepo) CreateDocument(_ context.Context, doc *db.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	r.documents[doc.ID] = doc
	return nil
}

func (r *fakeRepo) GetDocument(_ context.Context, userID, documentID int64) (*db.Document, error) {
	doc, ok := r.documents[documentID]
	if !ok || doc.UserID != userID {
		return nil, models.ErrNotFound
	}
	return doc, nil
}

func (r *fakeRepo) CreateConversation(_ context.Context, userID, documentID int64, title string) (*db.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	conv := &db.Conversation{ID: r.nextID, UserID: userID, DocumentID: documentID, Title: title}
	r.conversations[conv.ID] = conv
	return conv, nil
}

func (r *fakeRepo) AddExchange(_ context.Context, conversationID int64, question, answer string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchanges = append(r.exchanges, exchange{conversationID, question, answer})
	return nil
}

func (r *fakeRepo) OwnsConversation(_ context.Context, userID, conversationID int64) error {
	conv, ok := r.conversations[conversationID]
	if !ok || conv.UserID != userID {
		return models.ErrNotFound
	}
	return nil
}

func (r *fakeRepo) ConversationTurns(_ context.Context, conversationID int64) ([]models.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var turns []models.Turn
	for _, e := range r.exchanges {
		if e.conversationID == conversationID {
			turns = append(turns,
				models.Turn{Speaker: models.SpeakerUser, Text: e.question},
				models.Turn{Speaker: models.SpeakerAssistant, Text: e.answer})
		}
	}
	return turns, nil
}

// echoCompleter answers with the label of the first fragment in the context.
type echoCompleter struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (c *echoCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	start := strings.Index(prompt, "\n[Fragment ")
	if start < 0 {
		return "  no fragment  ", nil
	}
	start++
	end := strings.Index(prompt[start:], "]")
	return "  The answer is in " + prompt[start:start+end+1] + ".\n", nil
}

type stubDetector struct{ code string }

func (s stubDetector) Detect(string) (string, error) {
	if s.code == "" {
		return "", errors.New("undetectable")
	}
	return s.code, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func intPtr(v int) *int { return &v }
