package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// Embedder defaults.
const (
	defaultEmbedTimeout  = 5 * time.Second
	defaultEmbedAttempts = 3
	defaultBatchSize     = 64
)

// DefaultEmbedBackoff is the base delay between attempts on upstream timeouts.
const DefaultEmbedBackoff = 200 * time.Millisecond

// Embedding is the dense vector of one text.
type Embedding struct {
	Vector []float32

	// Degraded marks a zero vector returned for empty or malformed text.
	Degraded bool
}

// Embedder turns text into L2-normalised dense vectors and sparse lexical
// weights. It bounds every backend call with a timeout and retries upstream
// timeouts with exponential backoff.
type Embedder struct {
	backend     driven.EmbeddingService
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	batchSize   int
	sleep       func(ctx context.Context, d time.Duration) error
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithEmbedTimeout bounds a single backend call.
func WithEmbedTimeout(d time.Duration) EmbedderOption {
	return func(e *Embedder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithEmbedRetry sets the attempt budget and base backoff for upstream timeouts.
func WithEmbedRetry(attempts int, backoff time.Duration) EmbedderOption {
	return func(e *Embedder) {
		if attempts > 0 {
			e.maxAttempts = attempts
		}
		if backoff >= 0 {
			e.backoff = backoff
		}
	}
}

// WithBatchSize sets how many texts are sent per backend call.
func WithBatchSize(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewEmbedder wraps an embedding backend.
func NewEmbedder(backend driven.EmbeddingService, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		backend:     backend,
		timeout:     defaultEmbedTimeout,
		maxAttempts: defaultEmbedAttempts,
		backoff:     DefaultEmbedBackoff,
		batchSize:   defaultBatchSize,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ModelVersion identifies the model and dimension vectors come from.
// Generations built with different versions are never compared.
func (e *Embedder) ModelVersion() string {
	return fmt.Sprintf("%s/%d", e.backend.ModelName(), e.backend.Dimensions())
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int {
	return e.backend.Dimensions()
}

// Ping checks the backend is reachable.
func (e *Embedder) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// Embed returns the vector of a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (Embedding, error) {
	out, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return out[0], nil
}

// EmbedMany returns one embedding per text, in input order. Empty or
// malformed texts get a degraded zero vector and are never sent to the backend.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([]Embedding, error) {
	out := make([]Embedding, len(texts))
	dims := e.backend.Dimensions()

	pending := make([]int, 0, len(texts))
	for i, text := range texts {
		if isEmbeddable(text) {
			pending = append(pending, i)
			continue
		}
		out[i] = Embedding{Vector: make([]float32, dims), Degraded: true}
	}
	if degraded := len(texts) - len(pending); degraded > 0 {
		logger.Debug("embedder: %d of %d texts degraded (empty or malformed)", degraded, len(texts))
	}

	for start := 0; start < len(pending); start += e.batchSize {
		end := min(start+e.batchSize, len(pending))
		batch := make([]string, 0, end-start)
		for _, idx := range pending[start:end] {
			batch = append(batch, texts[idx])
		}

		vectors, err := e.call(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed: %w: backend returned %d vectors for %d texts",
				domain.ErrEmbeddingUnavailable, len(vectors), len(batch))
		}

		for j, idx := range pending[start:end] {
			vec := vectors[j]
			if len(vec) != dims {
				return nil, fmt.Errorf("embed: %w: dimension %d, expected %d",
					domain.ErrEmbeddingUnavailable, len(vec), dims)
			}
			out[idx] = normalise(vec)
		}
	}
	return out, nil
}

// LexicalWeight returns the sparse term weights of text under a generation's
// lexical model. A nil model weighs by term frequency.
func (e *Embedder) LexicalWeight(text string, model *LexicalModel) map[string]float64 {
	return model.Weights(textproc.Tokens(text))
}

// call sends one batch with a bounded wait and retries upstream timeouts.
func (e *Embedder) call(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		vectors, err := e.backend.EmbedBatch(callCtx, batch)
		cancel()
		if err == nil {
			return vectors, nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, domain.ErrUpstreamTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstreamTimeout, err)
		}
		lastErr = err
		if !errors.Is(err, domain.ErrUpstreamTimeout) || attempt == e.maxAttempts {
			break
		}
		delay := e.backoff << (attempt - 1)
		logger.Warn("embedder: attempt %d/%d timed out, retrying in %s", attempt, e.maxAttempts, delay)
		if err := e.sleep(ctx, delay); err != nil {
			break
		}
	}
	return nil, fmt.Errorf("embed: %w", lastErr)
}

// isEmbeddable rejects invalid UTF-8 and text without any word character.
func isEmbeddable(text string) bool {
	return utf8.ValidString(text) && len(textproc.Words(text)) > 0
}

// normalise scales vec to unit length. Zero or non-finite vectors are degraded.
func normalise(vec []float32) Embedding {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Embedding{Vector: make([]float32, len(vec)), Degraded: true}
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return Embedding{Vector: out}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
