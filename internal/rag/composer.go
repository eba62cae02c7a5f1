package rag

import (
	"context"
	"fmt"
	"strings"

	"docqa/internal/language"
	"docqa/internal/llmservice"
	"docqa/internal/models"
)

// Memory is the conversation window an answer is composed against.
type Memory interface {
	Render() string
	Append(question, answer string)
}

// Composer turns ranked candidates into a prompt, asks the completion
// service once, and packages the answer with citations.
type Composer struct {
	llm      llmservice.Completer
	selector *language.Selector
}

func NewComposer(llm llmservice.Completer, selector *language.Selector) *Composer {
	return &Composer{llm: llm, selector: selector}
}

// Compose answers question from candidates. mem may be nil; when set, the
// exchange is appended to it after a successful completion.
func (c *Composer) Compose(ctx context.Context, question string, candidates []models.ScoredCandidate, mem Memory) (*models.Answer, error) {
	if len(candidates) == 0 {
		return nil, models.ErrRetrievalEmpty
	}

	lang := c.selector.Pick(question)
	history := ""
	if mem != nil {
		history = mem.Render()
	}
	if history == "" {
		history = models.Template(models.EmptyHistory, lang)
	}

	prompt := fmt.Sprintf(models.Template(models.AnswerPromptTemplates, lang), BuildContext(candidates), history, question)
	answer, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrGeneration, err)
	}
	answer = strings.TrimSpace(answer)

	if mem != nil {
		mem.Append(question, answer)
	}

	return &models.Answer{
		Answer:          answer,
		Sources:         Citations(candidates),
		TotalChunksUsed: len(candidates),
	}, nil
}

// FragmentLabel is "[Fragment <index>]" or "[Fragment <index>, Page <page>]".
func FragmentLabel(ch models.Chunk) string {
	if ch.Page != nil {
		return fmt.Sprintf("[Fragment %d, Page %d]", ch.ChunkIndex, *ch.Page)
	}
	return fmt.Sprintf("[Fragment %d]", ch.ChunkIndex)
}

// BuildContext labels each candidate and joins them with blank lines.
func BuildContext(candidates []models.ScoredCandidate) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = FragmentLabel(c.Chunk) + "\n" + c.Chunk.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

// Citations returns one citation per candidate, in candidate order.
func Citations(candidates []models.ScoredCandidate) []models.Citation {
	out := make([]models.Citation, len(candidates))
	for i, c := range candidates {
		out[i] = models.Citation{
			ChunkIndex:     c.Chunk.ChunkIndex,
			FileID:         c.Chunk.FileID,
			ContentPreview: preview(c.Chunk.Content, models.PreviewLength),
		}
	}
	return out
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
