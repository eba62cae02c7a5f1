// Package summarizer produces whole-document summaries in two stages: one
// completion per chunk group, then one completion folding the group
// summaries together.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"docqa/internal/config"
	"docqa/internal/language"
	"docqa/internal/llmservice"
	"docqa/internal/models"
)

// charsPerToken approximates the tokenizer for input size checks.
const charsPerToken = 4

// Summarizer runs the leaf and fold stages against a completion service.
type Summarizer struct {
	llm           llmservice.Completer
	selector      *language.Selector
	maxInputChars int
	concurrency   int
}

func New(llm llmservice.Completer, selector *language.Selector, cfg *config.SummaryConfig) *Summarizer {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Summarizer{
		llm:           llm,
		selector:      selector,
		maxInputChars: cfg.MaxInputTokens * charsPerToken,
		concurrency:   concurrency,
	}
}

// Summarize returns the document summary for groups. It fails with
// models.ErrCanceled if token is set at any stage boundary and wraps
// completion failures in models.ErrGeneration.
func (s *Summarizer) Summarize(ctx context.Context, groups []Group, title string, token *Token) (string, error) {
	if len(groups) == 0 {
		return "", models.ErrRetrievalEmpty
	}

	leaves, err := s.leafStage(ctx, groups, title, token)
	if err != nil {
		return "", err
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return s.foldStage(ctx, leaves, title, token)
}

func (s *Summarizer) leafStage(ctx context.Context, groups []Group, title string, token *Token) ([]string, error) {
	leaves := make([]string, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, group := range groups {
		// check before scheduling so a canceled task stops queuing work
		if token.Canceled() {
			break
		}
		i, group := i, group
		g.Go(func() error {
			if token.Canceled() {
				return models.ErrCanceled
			}
			lang := s.selector.Pick(group[0])
			prompt := fmt.Sprintf(models.Template(models.LeafSummaryTemplates, lang), s.titleLine(title, lang), s.truncate(group.Text()))

			summary, err := s.complete(gctx, "leaf", prompt)
			if err != nil {
				return err
			}
			leaves[i] = summary
			log.Debug().Int("group", i+1).Int("groups", len(groups)).Str("lang", lang).Msg("Summarized group")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if token.Canceled() {
		return nil, models.ErrCanceled
	}
	return leaves, nil
}

func (s *Summarizer) foldStage(ctx context.Context, leaves []string, title string, token *Token) (string, error) {
	if token.Canceled() {
		return "", models.ErrCanceled
	}

	lang := s.selector.Pick(leaves[0])
	label := models.Template(models.SectionLabels, lang)
	parts := make([]string, len(leaves))
	for i, leaf := range leaves {
		parts[i] = fmt.Sprintf(label, i+1) + ":\n" + leaf
	}
	prompt := fmt.Sprintf(models.Template(models.FoldSummaryTemplates, lang), s.titleLine(title, lang), s.truncate(strings.Join(parts, "\n\n")))
	return s.complete(ctx, "fold", prompt)
}

func (s *Summarizer) complete(ctx context.Context, stage, prompt string) (string, error) {
	stageCalls.WithLabelValues(stage).Inc()
	out, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %s stage: %w", models.ErrGeneration, stage, err)
	}
	return strings.TrimSpace(out), nil
}

func (s *Summarizer) titleLine(title, lang string) string {
	if title == "" {
		return ""
	}
	return fmt.Sprintf(models.Template(models.TitleLines, lang), title)
}

// truncate cuts text whose estimated token count exceeds the input limit.
func (s *Summarizer) truncate(text string) string {
	if s.maxInputChars <= 0 || len(text) <= s.maxInputChars {
		return text
	}
	r := []rune(text)
	if len(r) <= s.maxInputChars {
		return text
	}
	log.Warn().Int("chars", len(r)).Int("limit", s.maxInputChars).Msg("Truncating oversized summary input")
	truncatedInputs.Inc()
	return string(r[:s.maxInputChars])
}
