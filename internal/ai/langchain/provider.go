// Package langchain implements the ai.Provider interface on top of
// langchaingo, so the rest of the system is indifferent to which hosted
// model actually serves the request.
package langchain

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/diffreview/internal/ai"
	"github.com/diffreview/internal/retry"
)

// Supported backends.
const (
	BackendOpenAI   = "openai"
	BackendGoogleAI = "googleai"
)

// Config for the langchain provider.
type Config struct {
	Backend   string `json:"backend"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
	BaseURL   string `json:"base_url"`
	MaxTokens int    `json:"max_tokens"`
}

// Provider implements ai.Provider using langchaingo model abstractions.
type Provider struct {
	llm      llms.Model
	backend  string
	retryCfg retry.Config
	logger   zerolog.Logger
}

// New creates the provider and initializes the underlying LLM.
func New(cfg Config, logger zerolog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	backend := cfg.Backend
	if backend == "" {
		backend = BackendOpenAI
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	var llm llms.Model
	var err error
	switch backend {
	case BackendOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			// Also covers Azure-style and other OpenAI-compatible endpoints.
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case BackendGoogleAI:
		opts := []googleai.Option{
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultMaxTokens(maxTokens),
		}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(cfg.Model))
		}
		llm, err = googleai.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported AI backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s LLM: %w", backend, err)
	}

	return &Provider{
		llm:      llm,
		backend:  backend,
		retryCfg: retry.LLMConfig(),
		logger:   logger,
	}, nil
}

// Name returns the backend name.
func (p *Provider) Name() string {
	return p.backend
}

// Complete issues one chat completion with retry. A *ai.GenerationError is
// returned once the retries are exhausted or the error is not transient.
func (p *Provider) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, req.UserContent),
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.StructuredJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	var text string
	err := retry.Do(ctx, p.retryCfg, p.logger, func() error {
		resp, callErr := p.llm.GenerateContent(ctx, messages, opts...)
		if callErr != nil {
			return callErr
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("model returned no choices")
		}
		text = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return "", &ai.GenerationError{Provider: p.backend, Err: err}
	}

	p.logger.Debug().
		Int("prompt_chars", len(req.SystemPrompt)+len(req.UserContent)).
		Int("response_chars", len(text)).
		Bool("structured", req.StructuredJSON).
		Msg("completion finished")

	return text, nil
}
