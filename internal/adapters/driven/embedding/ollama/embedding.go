// Package ollama embeds product and knowledge base text with a model served
// by a local Ollama instance.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ollamaapi"
	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/ratelimit"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Defaults for an all-minilm model on a local server.
const (
	DefaultBaseURL    = ollamaapi.DefaultBaseURL
	DefaultModel      = "all-minilm"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 384
)

// Config configures the embedding service. Zero values take the defaults.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int

	// Limiter throttles requests. Nil disables throttling.
	Limiter *ratelimit.RateLimiter
}

// EmbeddingService calls /api/embed, one request per batch.
type EmbeddingService struct {
	api        *ollamaapi.Client
	model      string
	dimensions int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbeddingService creates an Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		api:        ollamaapi.New(cfg.BaseURL, cfg.Timeout, cfg.Limiter),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed returns the vector of a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in input order. Every vector must
// have the configured dimension so a misconfigured model cannot corrupt an index.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embedResponse
	if err := s.api.Post(ctx, "/api/embed", embedRequest{Model: s.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if got := len(resp.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d texts", got, len(texts))
	}
	for i, v := range resp.Embeddings {
		if len(v) != s.dimensions {
			return nil, fmt.Errorf("ollama: embedding %d has %d dimensions, want %d", i, len(v), s.dimensions)
		}
	}
	return resp.Embeddings, nil
}

// Dimensions returns the vector length.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the configured model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks that the server answers and the model is pulled.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.Ping(ctx, s.model)
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}
