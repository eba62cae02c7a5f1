package llmservice

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"docqa/internal/config"
	"docqa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// Completer is the synchronous completion service used by the RAG core.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMClient sends single-prompt completions through a langchaingo model.
type LLMClient struct {
	llm   llms.Model
	cfg   *config.LLMConfig
	think *regexp.Regexp
}

// NewLLM builds the langchaingo model for the configured provider.
func NewLLM(llmConfig *config.LLMConfig) (llms.Model, error) {
	httpClient := &http.Client{Timeout: llmConfig.Timeout.Duration()}
	switch llmConfig.Provider {
	case "openai":
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		)
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
			ollama.WithHTTPClient(httpClient),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", llmConfig.Provider)
	}
}

func NewLLMClient(llmConfig *config.LLMConfig) (*LLMClient, error) {
	llm, err := NewLLM(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	return NewLLMClientFromModel(llm, llmConfig), nil
}

// NewLLMClientFromModel wraps an already constructed model.
func NewLLMClientFromModel(llm llms.Model, llmConfig *config.LLMConfig) *LLMClient {
	return &LLMClient{
		llm:   llm,
		cfg:   llmConfig,
		think: regexp.MustCompile(models.ThinkTag),
	}
}

// Complete sends prompt as a single human message and returns the first
// choice with any reasoning block removed.
func (c *LLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	msgContent := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	res, err := GenerateContent(ctx, c.llm, c.cfg, msgContent)
	completionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		completionsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	if len(res.Choices) == 0 {
		completionsTotal.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("llm returned no choices")
	}
	completionsTotal.WithLabelValues("success").Inc()

	return strings.TrimSpace(c.think.ReplaceAllString(res.Choices[0].Content, "")), nil
}

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, llmConfig *config.LLMConfig, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	log.Debug().Str("model", llmConfig.Model).Int("messages", len(messages)).Msg("Generating content")

	var opts []llms.CallOption
	if llmConfig.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(llmConfig.Temperature))
	}
	if llmConfig.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(llmConfig.MaxTokens))
	}

	return llm.GenerateContent(ctx, messages, opts...)
}
