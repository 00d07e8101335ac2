package ai

import (
	"context"
	"fmt"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = ConfigValidator{}

// ConfigValidator checks settings by building the backend they describe,
// pinging it when it is remote, and closing it again.
type ConfigValidator struct{}

// NewConfigValidator returns a ConfigValidator.
func NewConfigValidator() ConfigValidator {
	return ConfigValidator{}
}

func (ConfigValidator) ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	if settings != nil && settings.Dimensions < 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive, got %d", domain.ErrValidation, settings.Dimensions)
	}
	return release(CreateAndValidateEmbeddingService(ctx, settings))
}

func (ConfigValidator) ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error {
	return release(CreateAndValidateLLMService(ctx, settings))
}

// release closes a backend built only to be checked. Extractive answers
// build no backend at all.
func release[T interface{ Close() error }](svc T, err error) error {
	if err != nil {
		return err
	}
	if any(svc) == nil {
		return nil
	}
	return svc.Close()
}
