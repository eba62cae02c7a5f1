package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docqa/internal/config"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Filename      string    `bun:"filename,notnull" json:"filename"`
	Content       string    `bun:"content,notnull" json:"-"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	DocumentID    int64     `bun:"document_id,notnull" json:"document_id"`
	Title         string    `bun:"title" json:"title,omitempty"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

type Message struct {
	bun.BaseModel  `bun:"table:messages,alias:m"`
	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	ConversationID int64     `bun:"conversation_id,notnull" json:"conversation_id"`
	Role           string    `bun:"role,notnull" json:"role"`
	Content        string    `bun:"content,notnull" json:"content"`
	Timestamp      time.Time `bun:"timestamp,nullzero,notnull,default:current_timestamp" json:"timestamp"`
}

type DocumentSummary struct {
	bun.BaseModel         `bun:"table:document_summaries,alias:s"`
	DocumentID            int64     `bun:"document_id,pk"`
	Summary               string    `bun:"summary,notnull"`
	ChunkCount            int       `bun:"chunk_count,notnull"`
	TotalCharacters       int       `bun:"total_characters,notnull"`
	ProcessingTimeSeconds float64   `bun:"processing_time_seconds,notnull"`
	GeneratedAt           time.Time `bun:"generated_at,nullzero,notnull,default:current_timestamp"`
}

var tables = []interface{}{
	(*Document)(nil),
	(*Conversation)(nil),
	(*Message)(nil),
	(*DocumentSummary)(nil),
}

// NewDB wraps sqldb with the postgres dialect, logging queries when debug is set.
func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with bun's pgdriver or with lib/pq.
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	switch dbConfig.Driver {
	case "postgres":
		return sql.Open("postgres", dbConfig.URL)
	case "pgdriver":
		opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.URL)}
		if dbConfig.Password != "" {
			opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbConfig.Driver)
	}
}

// InitDB creates every table and the indexes the lookups rely on.
func InitDB(ctx context.Context, db *bun.DB) error {
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	indexes := []struct {
		model  interface{}
		name   string
		column string
	}{
		{(*Document)(nil), "documents_user_id_idx", "user_id"},
		{(*Conversation)(nil), "conversations_user_id_idx", "user_id"},
		{(*Message)(nil), "messages_conversation_id_idx", "conversation_id"},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.column).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// drop all tables
func DropTables(ctx context.Context, db *bun.DB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
