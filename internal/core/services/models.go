package services

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

// Verify interface compliance.
var _ driving.ModelService = (*ModelService)(nil)

// ModelService checks that the configured backends answer.
type ModelService struct {
	validator driven.AIConfigValidator
	embedding domain.EmbeddingSettings
	llm       domain.LLMSettings
}

// NewModelService creates a model service for the given settings.
func NewModelService(validator driven.AIConfigValidator, settings domain.RetrievalSettings) *ModelService {
	return &ModelService{
		validator: validator,
		embedding: settings.Embedding,
		llm:       settings.LLM,
	}
}

// Check probes both backends. A failure on one does not stop the other.
func (s *ModelService) Check(ctx context.Context) []domain.ModelCheck {
	embedding := domain.ModelCheck{
		Role:     domain.ModelRoleEmbedding,
		Provider: s.embedding.Provider,
		Model:    modelOrDefault(s.embedding.Model, domain.DefaultEmbeddingModels()[s.embedding.Provider]),
	}
	if err := s.validator.ValidateEmbedding(ctx, &s.embedding); err != nil {
		embedding.Error = err.Error()
	}

	llm := domain.ModelCheck{
		Role:     domain.ModelRoleLLM,
		Provider: s.llm.Provider,
		Model:    modelOrDefault(s.llm.Model, domain.DefaultLLMModels()[s.llm.Provider]),
	}
	if err := s.validator.ValidateLLM(ctx, &s.llm); err != nil {
		llm.Error = err.Error()
	}

	return []domain.ModelCheck{embedding, llm}
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}
