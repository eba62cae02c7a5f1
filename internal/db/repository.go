package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"docqa/internal/models"
)

// Repository is the relational store: documents, conversations, messages
// and cached summaries. Every user-facing lookup filters on owner, so a
// foreign id behaves exactly like a missing one.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *bun.DB {
	return r.db
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %w", what, models.ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func (r *Repository) CreateDocument(ctx context.Context, doc *Document) error {
	_, err := r.db.NewInsert().Model(doc).Returning("*").Exec(ctx)
	return err
}

func (r *Repository) GetDocument(ctx context.Context, userID, documentID int64) (*Document, error) {
	doc := new(Document)
	err := r.db.NewSelect().Model(doc).
		Where("d.id = ?", documentID).
		Where("d.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "document")
	}
	return doc, nil
}

func (r *Repository) CreateConversation(ctx context.Context, userID, documentID int64, title string) (*Conversation, error) {
	if _, err := r.GetDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	conv := &Conversation{UserID: userID, DocumentID: documentID, Title: title}
	if _, err := r.db.NewInsert().Model(conv).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (r *Repository) GetConversation(ctx context.Context, userID, conversationID int64) (*Conversation, error) {
	conv := new(Conversation)
	err := r.db.NewSelect().Model(conv).
		Where("c.id = ?", conversationID).
		Where("c.user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	return conv, nil
}

func (r *Repository) ListConversations(ctx context.Context, userID int64) ([]Conversation, error) {
	var convs []Conversation
	err := r.db.NewSelect().Model(&convs).
		Where("c.user_id = ?", userID).
		Order("c.created_at DESC").
		Scan(ctx)
	return convs, err
}

func (r *Repository) UpdateConversationTitle(ctx context.Context, userID, conversationID int64, title string) (*Conversation, error) {
	conv, err := r.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	if _, err := r.db.NewUpdate().Model(conv).Column("title").WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return conv, nil
}

// DeleteConversation removes the conversation and its messages.
func (r *Repository) DeleteConversation(ctx context.Context, userID, conversationID int64) (*Conversation, error) {
	conv, err := r.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Message)(nil)).Where("conversation_id = ?", conv.ID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model(conv).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete conversation: %w", err)
	}
	return conv, nil
}

// AddExchange stores a question and its answer. askedAt stamps the question
// so response times can be measured later.
func (r *Repository) AddExchange(ctx context.Context, conversationID int64, question, answer string, askedAt time.Time) error {
	msgs := []Message{
		{ConversationID: conversationID, Role: string(models.SpeakerUser), Content: question, Timestamp: askedAt},
		{ConversationID: conversationID, Role: string(models.SpeakerAssistant), Content: answer, Timestamp: time.Now()},
	}
	if _, err := r.db.NewInsert().Model(&msgs).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store messages: %w", err)
	}
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	var msgs []Message
	err := r.db.NewSelect().Model(&msgs).
		Where("m.conversation_id = ?", conversationID).
		Order("m.timestamp ASC", "m.id ASC").
		Scan(ctx)
	return msgs, err
}

// OwnsConversation returns nil when userID owns the conversation.
func (r *Repository) OwnsConversation(ctx context.Context, userID, conversationID int64) error {
	_, err := r.GetConversation(ctx, userID, conversationID)
	return err
}

// ConversationTurns returns the persisted messages in timestamp order.
func (r *Repository) ConversationTurns(ctx context.Context, conversationID int64) ([]models.Turn, error) {
	msgs, err := r.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	turns := make([]models.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = models.Turn{Speaker: models.Speaker(m.Role), Text: m.Content}
	}
	return turns, nil
}

func (r *Repository) GetSummary(ctx context.Context, documentID int64) (*DocumentSummary, error) {
	s := new(DocumentSummary)
	if err := r.db.NewSelect().Model(s).Where("s.document_id = ?", documentID).Scan(ctx); err != nil {
		return nil, notFound(err, "summary")
	}
	return s, nil
}

func (r *Repository) SaveSummary(ctx context.Context, s *DocumentSummary) error {
	_, err := r.db.NewInsert().Model(s).
		On("CONFLICT (document_id) DO UPDATE").
		Set("summary = EXCLUDED.summary").
		Set("chunk_count = EXCLUDED.chunk_count").
		Set("total_characters = EXCLUDED.total_characters").
		Set("processing_time_seconds = EXCLUDED.processing_time_seconds").
		Set("generated_at = EXCLUDED.generated_at").
		Exec(ctx)
	return err
}
