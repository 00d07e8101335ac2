package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
	"github.com/Jeremy-Tarlie/smartmarket/internal/textproc"
)

// Verify interface compliance.
var _ driving.ManifestService = (*Manifest)(nil)

// Build lease timing. A running build refreshes its heartbeat every
// BuildHeartbeatInterval; other processes treat it as abandoned once the
// heartbeat is older than StaleBuildAfter.
const (
	BuildHeartbeatInterval = 10 * time.Second
	StaleBuildAfter        = time.Minute
)

// Manifest is the registry of built artifacts and the single source of
// truth for which generation is live. It also serialises builds: at most
// one build per artifact runs at a time, across every process sharing the
// manifest store.
type Manifest struct {
	store     driven.ManifestStore
	artifacts driven.ArtifactStore
	now       func() time.Time
	owner     string

	heartbeat  time.Duration
	staleAfter time.Duration

	mu       sync.Mutex
	building map[string]*buildLease // artifact name -> lease
}

// buildLease is one build held by this process.
type buildLease struct {
	id   string
	stop chan struct{}
	done chan struct{}
}

// NewManifest creates a manifest over its persistent store.
func NewManifest(store driven.ManifestStore, artifacts driven.ArtifactStore) *Manifest {
	return &Manifest{
		store:      store,
		artifacts:  artifacts,
		now:        time.Now,
		owner:      processOwner(),
		heartbeat:  BuildHeartbeatInterval,
		staleAfter: StaleBuildAfter,
		building:   make(map[string]*buildLease),
	}
}

// processOwner names this process in build records.
func processOwner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Register records an artifact version and makes it current.
// Index generations must increase monotonically.
func (m *Manifest) Register(ctx context.Context, entry domain.ManifestEntry) error {
	if entry.ArtifactName == "" || entry.Version == "" {
		return fmt.Errorf("register: %w: artifact name and version are required", domain.ErrValidation)
	}
	if entry.Generation > 0 {
		cur, err := m.store.Current(ctx, entry.ArtifactName)
		switch {
		case err == nil && cur.Generation >= entry.Generation:
			return fmt.Errorf("register %s: %w: generation %d is not newer than current %d",
				entry.ArtifactName, domain.ErrIntegrityViolation, entry.Generation, cur.Generation)
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("register %s: %w", entry.ArtifactName, err)
		}
	}
	if entry.BuiltAt.IsZero() {
		entry.BuiltAt = m.now().UTC()
	}
	if err := m.store.Promote(ctx, entry); err != nil {
		return fmt.Errorf("register %s: %w", entry.ArtifactName, err)
	}
	logger.Info("manifest: %s@%s is current", entry.ArtifactName, entry.Version)
	return nil
}

// EnsureModel registers the embedding model version if it differs from the
// current one. Index generations built with another version stop validating.
func (m *Manifest) EnsureModel(ctx context.Context, version string, dims int) error {
	cur, err := m.store.Current(ctx, domain.ArtifactEmbeddingModel)
	if err == nil && cur.Version == version {
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("ensure model: %w", err)
	}
	return m.Register(ctx, domain.ManifestEntry{
		ArtifactName: domain.ArtifactEmbeddingModel,
		Version:      version,
		Metadata:     map[string]string{"dimensions": strconv.Itoa(dims)},
	})
}

// Current returns the live entry of an artifact.
func (m *Manifest) Current(ctx context.Context, artifact string) (*domain.ManifestEntry, error) {
	entry, err := m.store.Current(ctx, artifact)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownArtifact, artifact)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest current %s: %w", artifact, err)
	}
	return entry, nil
}

// Validate lists integrity violations of every current artifact: missing
// dependencies, missing artifact files, checksum and row count mismatches.
func (m *Manifest) Validate(ctx context.Context) ([]domain.IntegrityViolation, error) {
	entries, err := m.store.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	var violations []domain.IntegrityViolation
	for _, entry := range entries {
		violations = append(violations, m.checkDependencies(ctx, entry)...)
		if entry.Generation == 0 {
			continue
		}
		art, err := m.artifacts.Load(ctx, entry.ArtifactName, entry.Generation)
		if errors.Is(err, domain.ErrNotFound) {
			violations = append(violations, violation(entry, "artifact file missing"))
			continue
		}
		if err != nil {
			violations = append(violations, violation(entry, "artifact unreadable: "+err.Error()))
			continue
		}
		violations = append(violations, m.CheckArtifact(entry, art)...)
	}
	if len(violations) > 0 {
		logger.Warn("manifest: %d integrity violations", len(violations))
	}
	return violations, nil
}

// Check verifies an entry against its dependencies and its artifact payload.
func (m *Manifest) Check(ctx context.Context, entry domain.ManifestEntry, art *domain.IndexArtifact) []domain.IntegrityViolation {
	out := m.checkDependencies(ctx, entry)
	return append(out, m.CheckArtifact(entry, art)...)
}

// CheckArtifact compares the recorded checksum and row count with the payload.
func (m *Manifest) CheckArtifact(entry domain.ManifestEntry, art *domain.IndexArtifact) []domain.IntegrityViolation {
	var out []domain.IntegrityViolation
	if art == nil {
		return append(out, violation(entry, "artifact payload missing"))
	}
	if got := len(art.Entries); got != entry.RowCount {
		out = append(out, violation(entry, fmt.Sprintf("row count %d, recorded %d", got, entry.RowCount)))
	}
	sum := Checksum(art.Generation.ModelVersion, art.Generation.Dimension, art.Entries)
	if sum != entry.IntegrityHash {
		out = append(out, violation(entry, fmt.Sprintf("checksum %.12s, recorded %.12s", sum, entry.IntegrityHash)))
	}
	return out
}

func (m *Manifest) checkDependencies(ctx context.Context, entry domain.ManifestEntry) []domain.IntegrityViolation {
	var out []domain.IntegrityViolation
	for dep, want := range entry.Dependencies {
		cur, err := m.store.Current(ctx, dep)
		if err != nil {
			out = append(out, violation(entry, fmt.Sprintf("dependency %s missing", dep)))
			continue
		}
		if cur.Version != want {
			out = append(out, violation(entry, fmt.Sprintf("dependency %s is %s, built against %s", dep, cur.Version, want)))
		}
	}
	return out
}

// BeginBuild reserves the artifact for a build and allocates its generation id.
// Fails fast with domain.ErrBuildInProgress if a build is already running,
// in this process or in another one sharing the manifest store.
func (m *Manifest) BeginBuild(ctx context.Context, artifact string) (*domain.BuildRecord, error) {
	m.mu.Lock()
	if l, busy := m.building[artifact]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s (build %s)", domain.ErrBuildInProgress, artifact, l.id)
	}
	now := m.now().UTC()
	rec := domain.BuildRecord{
		ID:           uuid.NewString(),
		ArtifactName: artifact,
		Status:       domain.BuildRunning,
		StartedAt:    now,
		Owner:        m.owner,
		HeartbeatAt:  now,
	}
	lease := &buildLease{id: rec.ID, stop: make(chan struct{}), done: make(chan struct{})}
	m.building[artifact] = lease
	m.mu.Unlock()

	gen, err := m.store.StartBuild(ctx, rec)
	if err != nil {
		m.mu.Lock()
		delete(m.building, artifact)
		m.mu.Unlock()
		return nil, fmt.Errorf("begin build %s: %w", artifact, err)
	}
	rec.Generation = gen

	go m.keepAlive(lease)
	return &rec, nil
}

// keepAlive refreshes the heartbeat of a held build until it ends.
func (m *Manifest) keepAlive(l *buildLease) {
	defer close(l.done)
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if err := m.store.Heartbeat(context.Background(), l.id, m.now().UTC()); err != nil {
				logger.Warn("manifest: heartbeat for build %s: %v", l.id, err)
			}
		}
	}
}

// EndBuild records the outcome and releases the artifact.
func (m *Manifest) EndBuild(ctx context.Context, rec domain.BuildRecord) error {
	defer m.release(rec.ArtifactName)
	if rec.EndedAt.IsZero() {
		rec.EndedAt = m.now().UTC()
	}
	if err := m.store.FinishBuild(ctx, rec); err != nil {
		return fmt.Errorf("end build %s: %w", rec.ArtifactName, err)
	}
	return nil
}

// Building reports whether this process holds a build of artifact.
func (m *Manifest) Building(artifact string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.building[artifact]
	return busy
}

// holds reports whether this process holds the build with the given id.
func (m *Manifest) holds(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.building {
		if l.id == id {
			return true
		}
	}
	return false
}

func (m *Manifest) release(artifact string) {
	m.mu.Lock()
	l := m.building[artifact]
	delete(m.building, artifact)
	m.mu.Unlock()
	if l != nil {
		close(l.stop)
		<-l.done
	}
}

// RecoverAbandoned marks builds whose owner stopped heartbeating as failed
// and discards their partial artifacts. Builds still heartbeating, including
// those of other live processes, are left alone. It returns the number of
// builds recovered.
func (m *Manifest) RecoverAbandoned(ctx context.Context) (int, error) {
	running, err := m.store.RunningBuilds(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover builds: %w", err)
	}
	staleBefore := m.now().UTC().Add(-m.staleAfter)
	recovered := 0
	for _, rec := range running {
		if m.holds(rec.ID) || rec.HeartbeatAt.After(staleBefore) {
			continue
		}
		rec.Status = domain.BuildFailed
		rec.Error = "abandoned: process exited during build"
		rec.EndedAt = m.now().UTC()
		ok, err := m.store.ReclaimBuild(ctx, rec, staleBefore)
		if err != nil {
			return recovered, fmt.Errorf("recover build %s: %w", rec.ID, err)
		}
		if !ok {
			continue
		}
		if err := m.artifacts.Delete(ctx, rec.ArtifactName, rec.Generation); err != nil {
			logger.Warn("manifest: discard %s generation %d: %v", rec.ArtifactName, rec.Generation, err)
		}
		logger.Warn("manifest: recovered abandoned build %s of %s (owner %s)", rec.ID, rec.ArtifactName, rec.Owner)
		recovered++
	}
	return recovered, nil
}

// Summary returns one line per current artifact.
func (m *Manifest) Summary(ctx context.Context) ([]domain.ArtifactSummary, error) {
	entries, err := m.store.ListCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("manifest summary: %w", err)
	}
	out := make([]domain.ArtifactSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.ArtifactSummary{
			ArtifactName: e.ArtifactName,
			Version:      e.Version,
			RowCount:     e.RowCount,
			BuiltAt:      e.BuiltAt,
			Model:        e.Dependencies[domain.ArtifactEmbeddingModel],
		})
	}
	return out, nil
}

// Builds returns recent build records, newest first.
func (m *Manifest) Builds(ctx context.Context, artifact string, limit int) ([]domain.BuildRecord, error) {
	return m.store.Builds(ctx, artifact, limit)
}

// History returns recorded entries of an artifact, newest first.
func (m *Manifest) History(ctx context.Context, artifact string, limit int) ([]domain.ManifestEntry, error) {
	return m.store.History(ctx, artifact, limit)
}

// EntryFor describes a freshly built generation for registration.
func EntryFor(artifact string, info domain.IndexGeneration) domain.ManifestEntry {
	return domain.ManifestEntry{
		ArtifactName:  artifact,
		Version:       strconv.FormatUint(info.ID, 10),
		Generation:    info.ID,
		Dependencies:  map[string]string{domain.ArtifactEmbeddingModel: info.ModelVersion},
		IntegrityHash: info.Checksum,
		RowCount:      info.RowCount(),
		BuiltAt:       info.BuiltAt,
		Metadata: map[string]string{
			"corpus":         string(info.Corpus),
			"dimension":      strconv.Itoa(info.Dimension),
			"vector_count":   strconv.Itoa(info.VectorCount),
			"degraded_count": strconv.Itoa(info.DegradedCount),
			"stemmer":        textproc.Language(),
		},
	}
}

func violation(entry domain.ManifestEntry, reason string) domain.IntegrityViolation {
	return domain.IntegrityViolation{
		ArtifactName: entry.ArtifactName,
		Version:      entry.Version,
		Reason:       reason,
	}
}
