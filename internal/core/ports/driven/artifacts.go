package driven

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// ArtifactStore persists generation payloads, addressed by
// (artifact name, generation id). A saved artifact is never rewritten.
type ArtifactStore interface {
	// Save writes the artifact. A partially written artifact is never
	// visible to Load.
	Save(ctx context.Context, name string, artifact *domain.IndexArtifact) error

	// Load reads an artifact. Returns domain.ErrNotFound if absent.
	Load(ctx context.Context, name string, generation uint64) (*domain.IndexArtifact, error)

	// Exists reports whether the artifact is present.
	Exists(ctx context.Context, name string, generation uint64) (bool, error)

	// Delete removes an artifact. Deleting an absent artifact is not an error.
	Delete(ctx context.Context, name string, generation uint64) error

	// List returns the stored generation ids of an artifact in ascending order.
	List(ctx context.Context, name string) ([]uint64, error)
}
