package driving

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// RebuildService is the entry point used by job runners and operators.
type RebuildService interface {
	// TriggerRebuild builds a new generation of an index artifact and promotes it.
	// Non-forced requests are skipped while the current generation is recent.
	// Safe to re-run after a crash: each call registers a complete generation or none.
	TriggerRebuild(ctx context.Context, artifact string, force bool) (*domain.BuildRecord, error)

	// CatalogChanged notifies that catalog items changed.
	CatalogChanged(ctx context.Context)
}

// ManifestService exposes the artifact registry.
type ManifestService interface {
	// Current returns the live entry of an artifact or domain.ErrUnknownArtifact.
	Current(ctx context.Context, artifact string) (*domain.ManifestEntry, error)

	// Validate lists integrity violations of every current artifact.
	Validate(ctx context.Context) ([]domain.IntegrityViolation, error)

	// Summary returns one line per current artifact.
	Summary(ctx context.Context) ([]domain.ArtifactSummary, error)
}

// CacheService exposes operator cache controls.
type CacheService interface {
	// InvalidateAll drops every cached result. Idempotent.
	InvalidateAll(ctx context.Context) error

	// Stats reports cache effectiveness.
	Stats(ctx context.Context) domain.CacheStats
}
