package driven

import "context"

// VectorIndex is one fully built, read-only similarity index.
// Implementations must be safe for concurrent Search calls.
type VectorIndex interface {
	// Search returns at most k hits ordered by descending similarity,
	// ties broken by ascending id.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Vector returns the stored (normalised) vector for id.
	Vector(id string) ([]float32, bool)

	// Len returns the number of vectors in the index.
	Len() int

	// Dimensions returns the vector length.
	Dimensions() int
}

// VectorIndexBuilder builds a fresh index sized to the whole corpus.
// Indexes are never modified after Build returns.
type VectorIndexBuilder interface {
	Build(ctx context.Context, ids []string, vectors [][]float32) (VectorIndex, error)
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ID is the matched entry.
	ID string

	// Similarity is the cosine similarity score.
	Similarity float64
}
