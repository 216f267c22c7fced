package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tieubaoca/tables-retriever/config"
)

var (
	ErrUnknownProvider   = errors.New("unknown llm provider")
	ErrEmbeddingMismatch = errors.New("embedding count does not match input count")
)

// ChatProvider generates text from a single prompt.
type ChatProvider interface {
	Generate(ctx context.Context, prompt string, systemPrompt string) (string, error)
	Name() string
}

// EmbeddingProvider turns text into vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Provider supports both chat and embeddings.
type Provider interface {
	ChatProvider
	EmbeddingProvider
}

// NewProvider builds the provider selected by cfg.Provider.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAIService(cfg.BaseURL, cfg.OpenAIAPIKey, cfg.Model, cfg.EmbedModel), nil
	case ProviderGemini:
		return NewGeminiService(ctx, cfg.GeminiAPIKeys, cfg.Model, cfg.EmbedModel)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}
