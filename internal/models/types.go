package models

import "time"

// Chunk is one immutable slice of a document's extracted text. ID is stable
// for the lifetime of the vector store that holds it.
type Chunk struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
	FileID     int64  `json:"file_id"`
	UserID     int64  `json:"user_id"`
	Page       *int   `json:"page,omitempty"`
	SourcePath string `json:"source_path"`
}

// Section is a parsed, not yet chunked, piece of a document.
type Section struct {
	Content    string
	PageNumber int
}

// ScoredChunk is a raw similarity hit from the vector store.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

type ScoredCandidate struct {
	Chunk         Chunk   `json:"chunk"`
	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score"`
	CombinedScore float64 `json:"combined_score"`
}

type Citation struct {
	ChunkIndex     int    `json:"chunk_index"`
	FileID         int64  `json:"file_id"`
	ContentPreview string `json:"content_preview"`
}

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

type Answer struct {
	Answer          string     `json:"answer"`
	Sources         []Citation `json:"sources"`
	TotalChunksUsed int        `json:"total_chunks_used"`
	ConversationID  int64      `json:"conversation_id,omitempty"`
}

type SummaryStatus string

const (
	SummaryCompleted SummaryStatus = "completed"
	SummaryCanceled  SummaryStatus = "canceled"
)

type SummaryMetrics struct {
	ChunkCount            int        `json:"chunk_count"`
	TotalCharacters       int        `json:"total_characters"`
	ProcessingTimeSeconds float64    `json:"processing_time_seconds"`
	Cached                bool       `json:"cached"`
	GeneratedAt           *time.Time `json:"generated_at,omitempty"`
}

type SummaryResult struct {
	TaskID        string         `json:"task_id"`
	Status        SummaryStatus  `json:"status"`
	DocumentID    int64          `json:"document_id"`
	DocumentTitle string         `json:"document_title"`
	Summary       string         `json:"summary,omitempty"`
	Metrics       SummaryMetrics `json:"metrics"`
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
}
