// Package ai provides factory functions for creating model service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/llm/ollama"
	openaillm "github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/llm/openai"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ratelimit"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// limiterBurst lets short batches through without waiting.
const limiterBurst = 4

// InitResult contains the result of model service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService

	// LLMService is nil when answers are extractive.
	LLMService driven.LLMService

	Warnings []string // Non-fatal issues that caused fallback.
	FellBack bool     // True if the generator fell back to extractive answers.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		_ = r.EmbeddingService.Close()
	}
	if r.LLMService != nil {
		_ = r.LLMService.Close()
	}
}

// Init creates the embedding backend and the optional generator.
// An unreachable embedding backend is fatal because switching model would
// invalidate every generation. An unreachable generator degrades to
// extractive answers with a warning.
func Init(ctx context.Context, settings domain.RetrievalSettings, prompts driven.PromptStore) (*InitResult, error) {
	result := &InitResult{}

	embedder, err := CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
	if err != nil {
		return nil, err
	}
	result.EmbeddingService = embedder

	if settings.LLM.Provider != domain.AIProviderLocal && !settings.LLM.IsConfigured() {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("LLM provider %q is not configured, answers are extractive", settings.LLM.Provider))
		result.FellBack = true
	}

	llm, err := CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
		return result, nil
	}
	if llm != nil {
		if aware, ok := llm.(driven.PromptStoreAware); ok && prompts != nil {
			aware.SetPromptStore(prompts)
		}
		result.LLMService = llm
	}

	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	if !settings.Provider.IsRemote() {
		return svc, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable: %w", domain.ErrEmbeddingUnavailable, settings.Provider, err)
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil without error when answers are extractive.
func CreateAndValidateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	if err := ping(ctx, svc.Ping); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("%w: %s unreachable: %w", domain.ErrLLMUnavailable, settings.Provider, err)
	}

	return svc, nil
}

// CreateEmbeddingService creates the embedding service selected by settings.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, errors.New("embedding settings are missing")
	}

	switch settings.Provider {
	case domain.AIProviderLocal, "":
		return hashing.NewEmbeddingService(hashing.Config{Dimensions: settings.Dimensions}), nil

	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		return nil, errors.New("anthropic does not support embeddings, use local, ollama or openai")

	default:
		return nil, fmt.Errorf("%w: embedding provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the generator selected by settings.
// Returns nil for the local provider and for incomplete remote settings.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("%w: LLM provider %q", domain.ErrUnsupportedType, settings.Provider)
	}
}

func ping(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return fn(ctx)
}

// embeddingDimensions prefers the known size of the model over the configured one.
func embeddingDimensions(settings *domain.EmbeddingSettings) int {
	if d := domain.EmbeddingDimensions()[settings.Model]; d > 0 {
		return d
	}
	return settings.Dimensions
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Timeout:    settings.Timeout,
		Dimensions: embeddingDimensions(settings),
		Limiter:    ratelimit.NewRateLimiter(settings.RequestsPerSecond, limiterBurst),
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
// text-embedding-3 models are shortened to the configured dimension.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := settings.Dimensions
	if !strings.HasPrefix(settings.Model, "text-embedding-3") {
		dimensions = embeddingDimensions(settings)
	}
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Timeout:    settings.Timeout,
		Dimensions: dimensions,
		Limiter:    ratelimit.NewRateLimiter(settings.RequestsPerSecond, limiterBurst),
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
}
