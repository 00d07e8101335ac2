package driven

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// AIConfigValidator checks model settings against the live backends.
// Offline settings (hashing embeddings, extractive answers) always pass.
type AIConfigValidator interface {
	ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
	ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error
}
