package driven

import "context"

// EmbeddingService turns text into dense vectors. Adapters: hashing
// (offline), ollama and openai.
//
// A remote backend that times out or asks the caller to back off returns an
// error wrapping domain.ErrUpstreamTimeout so the embedder can retry it.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns exactly one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions and ModelName identify the vector space. Vectors from
	// different spaces are never compared.
	Dimensions() int
	ModelName() string

	Ping(ctx context.Context) error
	Close() error
}
