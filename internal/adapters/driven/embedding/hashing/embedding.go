// Package hashing provides a deterministic, in-process embedding service.
//
// Texts are projected into a fixed number of dimensions with signed feature
// hashing over words and character trigrams. Texts sharing words end up
// close in cosine space; no model download or network call is needed.
package hashing

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "hashing-v1"
	DefaultDimensions = 384
)

// Feature weights.
const (
	wordWeight    = 1.0
	trigramWeight = 0.35
)

// Config holds configuration for the hashing embedding service.
type Config struct {
	// Dimensions is the embedding vector size (default: 384).
	Dimensions int
}

// EmbeddingService embeds text by feature hashing.
type EmbeddingService struct {
	dimensions int
}

// NewEmbeddingService creates a hashing embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: cfg.Dimensions}
}

// Embed returns the hashed vector of text. Text without words yields a zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, s.dimensions)
	for _, word := range words(text) {
		s.add(vec, "w:"+word, wordWeight)
		padded := []rune("^" + word + "$")
		for i := 0; i+3 <= len(padded); i++ {
			s.add(vec, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// ModelName returns the model identifier.
func (s *EmbeddingService) ModelName() string { return DefaultModel }

// Ping always succeeds.
func (s *EmbeddingService) Ping(ctx context.Context) error { return ctx.Err() }

// Close releases resources.
func (s *EmbeddingService) Close() error { return nil }

// add folds one feature into vec. The hash picks the slot and the sign.
func (s *EmbeddingService) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	slot := sum % uint64(s.dimensions)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[slot] += weight
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
