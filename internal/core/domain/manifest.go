package domain

import (
	"fmt"
	"time"
)

// ManifestEntry is the registered record of a built artifact.
// The current entry per artifact decides which generation is live.
type ManifestEntry struct {
	// ArtifactName identifies the artifact (products_index, embedding_model, ...).
	ArtifactName string `json:"artifact_name"`

	// Version is the artifact version. For index artifacts it is the
	// generation id in decimal form.
	Version string `json:"version"`

	// Generation is the index generation id, zero for non-index artifacts.
	Generation uint64 `json:"generation_id,omitempty"`

	// Dependencies maps artifact names to the version this artifact was built against.
	Dependencies map[string]string `json:"dependencies,omitempty"`

	// IntegrityHash is the content checksum of the artifact.
	IntegrityHash string `json:"integrity_hash,omitempty"`

	// RowCount is the number of entries in the artifact.
	RowCount int `json:"row_count"`

	// BuiltAt is when the artifact was produced.
	BuiltAt time.Time `json:"built_at"`

	// Metadata holds free-form descriptive values (model name, dimension, ...).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IntegrityViolation describes why a registered artifact must not be served.
type IntegrityViolation struct {
	ArtifactName string `json:"artifact_name"`
	Version      string `json:"version"`
	Reason       string `json:"reason"`
}

// String returns a one-line description of the violation.
func (v IntegrityViolation) String() string {
	return fmt.Sprintf("%s@%s: %s", v.ArtifactName, v.Version, v.Reason)
}

// Err wraps the violation as an ErrIntegrityViolation.
func (v IntegrityViolation) Err() error {
	return fmt.Errorf("%w: %s", ErrIntegrityViolation, v.String())
}

// BuildStatus is the outcome of a rebuild request.
type BuildStatus string

// Build statuses.
const (
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
	BuildSkipped   BuildStatus = "skipped"
)

// BuildRecord tracks one build attempt of an artifact.
type BuildRecord struct {
	// ID is a unique run identifier.
	ID string `json:"id"`

	ArtifactName string      `json:"artifact_name"`
	Generation   uint64      `json:"generation_id"`
	Status       BuildStatus `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	EndedAt      time.Time   `json:"ended_at,omitempty"`
	RowCount     int         `json:"row_count"`
	Error        string      `json:"error,omitempty"`

	// Owner identifies the process holding the build; HeartbeatAt is
	// refreshed by that process while the build runs.
	Owner       string    `json:"owner,omitempty"`
	HeartbeatAt time.Time `json:"heartbeat_at,omitempty"`
}

// Duration returns how long the build took, zero while running.
func (b BuildRecord) Duration() time.Duration {
	if b.EndedAt.IsZero() {
		return 0
	}
	return b.EndedAt.Sub(b.StartedAt)
}
