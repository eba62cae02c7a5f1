package summarizer

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/models"
	"docqa/internal/rag"
)

// Repository is the relational side of summarization.
type Repository interface {
	GetDocument(ctx context.Context, userID, documentID int64) (*db.Document, error)
	GetSummary(ctx context.Context, documentID int64) (*db.DocumentSummary, error)
	SaveSummary(ctx context.Context, s *db.DocumentSummary) error
}

// Service summarizes stored documents and tracks the running tasks.
type Service struct {
	repo       Repository
	stores     rag.StoreProvider
	summarizer *Summarizer
	registry   *Registry
	cfg        config.SummaryConfig
}

func NewService(repo Repository, stores rag.StoreProvider, summarizer *Summarizer, registry *Registry, cfg *config.SummaryConfig) *Service {
	return &Service{
		repo:       repo,
		stores:     stores,
		summarizer: summarizer,
		registry:   registry,
		cfg:        *cfg,
	}
}

// Start registers a task. Every started task must be passed to Run.
func (s *Service) Start(userID, fileID int64) *Task {
	return s.registry.Start(userID, fileID)
}

// Summarize is Start followed by Run.
func (s *Service) Summarize(ctx context.Context, userID, fileID int64, refresh bool) (*models.SummaryResult, error) {
	return s.Run(ctx, s.Start(userID, fileID), refresh)
}

// Run summarizes the task's document. A cached summary is returned unless
// refresh is set. Cancellation yields a result with status canceled and
// no summary. The task is unregistered whatever the outcome.
func (s *Service) Run(ctx context.Context, task *Task, refresh bool) (*models.SummaryResult, error) {
	defer s.registry.Finish(task.ID)
	start := time.Now()

	res, err := s.run(ctx, task, refresh, start)
	switch {
	case err == nil:
		summariesTotal.WithLabelValues(string(res.Status)).Inc()
	case errors.Is(err, models.ErrCanceled):
		summariesTotal.WithLabelValues(string(models.SummaryCanceled)).Inc()
		log.Info().Str("task_id", task.ID).Dur("elapsed", time.Since(start)).Msg("Summary canceled")
		return &models.SummaryResult{
			TaskID:     task.ID,
			Status:     models.SummaryCanceled,
			DocumentID: task.FileID,
		}, nil
	default:
		summariesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context, task *Task, refresh bool, start time.Time) (*models.SummaryResult, error) {
	doc, err := s.repo.GetDocument(ctx, task.UserID, task.FileID)
	if err != nil {
		return nil, err
	}
	res := &models.SummaryResult{
		TaskID:        task.ID,
		Status:        models.SummaryCompleted,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Filename,
	}

	if s.cfg.CacheEnabled() && !refresh {
		cached, err := s.repo.GetSummary(ctx, doc.ID)
		switch {
		case err == nil:
			generatedAt := cached.GeneratedAt
			res.Summary = cached.Summary
			res.Metrics = models.SummaryMetrics{
				ChunkCount:            cached.ChunkCount,
				TotalCharacters:       cached.TotalCharacters,
				ProcessingTimeSeconds: cached.ProcessingTimeSeconds,
				Cached:                true,
				GeneratedAt:           &generatedAt,
			}
			return res, nil
		case !errors.Is(err, models.ErrNotFound):
			log.Warn().Err(err).Int64("document_id", doc.ID).Msg("Summary cache lookup failed")
		}
	}

	store, err := s.stores.OpenStore(task.UserID, task.FileID)
	if err != nil {
		return nil, err
	}
	chunks, err := store.GetAllChunks(ctx)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(chunks))
	totalChars := 0
	for i, ch := range chunks {
		contents[i] = ch.Content
		totalChars += utf8.RuneCountInString(ch.Content)
	}
	groups := Prepare(contents, s.cfg.MaxGroupLength, s.cfg.ExactDedup)
	log.Info().
		Str("task_id", task.ID).
		Int("chunks", len(chunks)).
		Int("groups", len(groups)).
		Msg("Summarizing document")

	summary, err := s.summarizer.Summarize(ctx, groups, doc.Filename, task.Token)
	if err != nil {
		return nil, err
	}

	generatedAt := time.Now()
	elapsed := generatedAt.Sub(start).Seconds()
	summaryDuration.Observe(elapsed)
	res.Summary = summary
	res.Metrics = models.SummaryMetrics{
		ChunkCount:            len(chunks),
		TotalCharacters:       totalChars,
		ProcessingTimeSeconds: elapsed,
		GeneratedAt:           &generatedAt,
	}

	if s.cfg.CacheEnabled() {
		err := s.repo.SaveSummary(ctx, &db.DocumentSummary{
			DocumentID:            doc.ID,
			Summary:               summary,
			ChunkCount:            len(chunks),
			TotalCharacters:       totalChars,
			ProcessingTimeSeconds: elapsed,
			GeneratedAt:           generatedAt,
		})
		if err != nil {
			log.Error().Err(err).Int64("document_id", doc.ID).Msg("Failed to cache summary")
		}
	}
	return res, nil
}

// Cancel flags a running task owned by userID.
func (s *Service) Cancel(userID int64, taskID string) error {
	if err := s.registry.Cancel(userID, taskID); err != nil {
		return err
	}
	log.Info().Int64("user_id", userID).Str("task_id", taskID).Msg("Summary cancellation requested")
	return nil
}

// Active lists userID's running tasks.
func (s *Service) Active(userID int64) []TaskInfo {
	return s.registry.List(userID)
}
