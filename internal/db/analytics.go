package db

import (
	"context"
	"fmt"
	"time"

	"docqa/internal/models"
)

type DocumentUsage struct {
	ID           int64  `bun:"id" json:"id"`
	Filename     string `bun:"filename" json:"filename"`
	Interactions int    `bun:"interactions" json:"interactions"`
}

type UserStats struct {
	DocumentsCount     int             `json:"documents_count"`
	ConversationsCount int             `json:"conversations_count"`
	QuestionsCount     int             `json:"questions_count"`
	AvgResponseTimeMs  float64         `json:"avg_response_time_ms"`
	MostActiveDay      *string         `json:"most_active_day"`
	DocumentUsage      []DocumentUsage `json:"document_usage"`
}

const (
	documentUsageLimit = 5
	activityWindow     = 7 * 24 * time.Hour
)

func (r *Repository) UserStats(ctx context.Context, userID int64, now time.Time) (*UserStats, error) {
	stats := &UserStats{DocumentUsage: []DocumentUsage{}}
	var err error

	if stats.DocumentsCount, err = r.db.NewSelect().Model((*Document)(nil)).Where("user_id = ?", userID).Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	if stats.ConversationsCount, err = r.db.NewSelect().Model((*Conversation)(nil)).Where("user_id = ?", userID).Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	stats.QuestionsCount, err = r.db.NewSelect().Model((*Message)(nil)).
		Join("JOIN conversations AS c ON c.id = m.conversation_id").
		Where("c.user_id = ?", userID).
		Where("m.role = ?", string(models.SpeakerUser)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	var msgs []Message
	err = r.db.NewSelect().Model(&msgs).
		Join("JOIN conversations AS c ON c.id = m.conversation_id").
		Where("c.user_id = ?", userID).
		Order("m.conversation_id ASC", "m.timestamp ASC", "m.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	stats.AvgResponseTimeMs = averageResponseTimeMs(msgs)

	err = r.db.NewSelect().
		TableExpr("documents AS d").
		ColumnExpr("d.id, d.filename").
		ColumnExpr("count(m.id) AS interactions").
		Join("JOIN conversations AS c ON c.document_id = d.id").
		Join("JOIN messages AS m ON m.conversation_id = c.id").
		Where("d.user_id = ?", userID).
		GroupExpr("d.id, d.filename").
		OrderExpr("interactions DESC").
		Limit(documentUsageLimit).
		Scan(ctx, &stats.DocumentUsage)
	if err != nil {
		return nil, fmt.Errorf("failed to load document usage: %w", err)
	}

	var days []struct {
		Day          time.Time `bun:"day"`
		MessageCount int       `bun:"message_count"`
	}
	err = r.db.NewSelect().
		TableExpr("messages AS m").
		ColumnExpr("date(m.timestamp) AS day").
		ColumnExpr("count(m.id) AS message_count").
		Join("JOIN conversations AS c ON c.id = m.conversation_id").
		Where("c.user_id = ?", userID).
		Where("m.timestamp >= ?", now.Add(-activityWindow)).
		GroupExpr("day").
		OrderExpr("message_count DESC").
		Limit(1).
		Scan(ctx, &days)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if len(days) > 0 {
		day := days[0].Day.Format("2006-01-02")
		stats.MostActiveDay = &day
	}

	return stats, nil
}

// averageResponseTimeMs averages the gap between each user message and the
// assistant message that directly follows it in the same conversation.
// msgs must be ordered by conversation, then timestamp.
func averageResponseTimeMs(msgs []Message) float64 {
	var total float64
	var count int
	for i := 0; i+1 < len(msgs); i++ {
		q, a := msgs[i], msgs[i+1]
		if q.ConversationID != a.ConversationID {
			continue
		}
		if q.Role == string(models.SpeakerUser) && a.Role == string(models.SpeakerAssistant) {
			total += float64(a.Timestamp.Sub(q.Timestamp).Milliseconds())
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
