package driven

import (
	"context"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// ManifestStore persists manifest entries and the current pointer of each artifact.
// The current pointer is the only record that changes in normal operation.
type ManifestStore interface {
	// Promote records the entry and makes it current in a single transaction.
	Promote(ctx context.Context, entry domain.ManifestEntry) error

	// Current returns the current entry of an artifact.
	// Returns domain.ErrNotFound if nothing is registered.
	Current(ctx context.Context, artifact string) (*domain.ManifestEntry, error)

	// ListCurrent returns the current entry of every artifact, ordered by name.
	ListCurrent(ctx context.Context) ([]domain.ManifestEntry, error)

	// History returns every entry recorded for an artifact, newest first.
	History(ctx context.Context, artifact string, limit int) ([]domain.ManifestEntry, error)

	// StartBuild allocates the next generation id of an artifact and records
	// a running build. Generation ids are never reused. At most one build of
	// an artifact runs at a time, across every process sharing the store:
	// returns domain.ErrBuildInProgress while another one is running.
	StartBuild(ctx context.Context, record domain.BuildRecord) (uint64, error)

	// FinishBuild records the outcome of a running build.
	// Returns domain.ErrNotFound if the build is unknown or no longer running.
	FinishBuild(ctx context.Context, record domain.BuildRecord) error

	// Heartbeat refreshes the liveness timestamp of a running build.
	// Returns domain.ErrNotFound if the build is no longer running.
	Heartbeat(ctx context.Context, id string, at time.Time) error

	// ReclaimBuild finishes a running build on behalf of a dead owner. It only
	// applies while the build's heartbeat is older than staleBefore and
	// reports whether the record was reclaimed.
	ReclaimBuild(ctx context.Context, record domain.BuildRecord, staleBefore time.Time) (bool, error)

	// Builds returns recent build records, newest first. An empty artifact
	// name returns builds of every artifact.
	Builds(ctx context.Context, artifact string, limit int) ([]domain.BuildRecord, error)

	// RunningBuilds returns builds that never finished, e.g. after a crash.
	RunningBuilds(ctx context.Context) ([]domain.BuildRecord, error)
}
