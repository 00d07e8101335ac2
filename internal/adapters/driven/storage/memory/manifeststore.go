package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// Ensure ManifestStore implements the interface.
var _ driven.ManifestStore = (*ManifestStore)(nil)

// ManifestStore keeps manifest entries, current pointers and build
// records in memory.
type ManifestStore struct {
	mu          sync.RWMutex
	history     map[string][]domain.ManifestEntry // oldest first
	current     map[string]int                    // index into history
	builds      []domain.BuildRecord              // oldest first
	generations map[string]uint64
}

// NewManifestStore creates an empty manifest store.
func NewManifestStore() *ManifestStore {
	return &ManifestStore{
		history:     make(map[string][]domain.ManifestEntry),
		current:     make(map[string]int),
		generations: make(map[string]uint64),
	}
}

// Promote records entry and makes it current.
func (s *ManifestStore) Promote(_ context.Context, entry domain.ManifestEntry) error {
	entry = cloneEntry(entry)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[entry.ArtifactName] = append(s.history[entry.ArtifactName], entry)
	s.current[entry.ArtifactName] = len(s.history[entry.ArtifactName]) - 1
	if entry.Generation > s.generations[entry.ArtifactName] {
		s.generations[entry.ArtifactName] = entry.Generation
	}
	return nil
}

// Current returns the current entry of an artifact.
func (s *ManifestStore) Current(_ context.Context, artifact string) (*domain.ManifestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.current[artifact]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e := cloneEntry(s.history[artifact][i])
	return &e, nil
}

// ListCurrent returns every current entry ordered by artifact name.
func (s *ManifestStore) ListCurrent(_ context.Context) ([]domain.ManifestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := slices.Sorted(maps.Keys(s.current))
	out := make([]domain.ManifestEntry, 0, len(names))
	for _, name := range names {
		out = append(out, cloneEntry(s.history[name][s.current[name]]))
	}
	return out, nil
}

// History returns recorded entries of an artifact, newest first.
func (s *ManifestStore) History(_ context.Context, artifact string, limit int) ([]domain.ManifestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[artifact]
	out := make([]domain.ManifestEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, cloneEntry(entries[i]))
	}
	return out, nil
}

// StartBuild allocates the next generation id and records a running build.
// It fails with domain.ErrBuildInProgress while the artifact has one running.
func (s *ManifestStore) StartBuild(_ context.Context, record domain.BuildRecord) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.runningIndex(record.ArtifactName); i >= 0 {
		return 0, fmt.Errorf("%w: %s (build %s)",
			domain.ErrBuildInProgress, record.ArtifactName, s.builds[i].ID)
	}
	s.generations[record.ArtifactName]++
	record.Generation = s.generations[record.ArtifactName]
	record.Status = domain.BuildRunning
	if record.HeartbeatAt.IsZero() {
		record.HeartbeatAt = record.StartedAt
	}
	s.builds = append(s.builds, record)
	return record.Generation, nil
}

// FinishBuild records the outcome of a running build.
func (s *ManifestStore) FinishBuild(_ context.Context, record domain.BuildRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.buildIndex(record.ID)
	if i < 0 || s.builds[i].Status != domain.BuildRunning {
		return domain.ErrNotFound
	}
	s.builds[i] = record
	return nil
}

// Heartbeat refreshes the liveness timestamp of a running build.
func (s *ManifestStore) Heartbeat(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.buildIndex(id)
	if i < 0 || s.builds[i].Status != domain.BuildRunning {
		return domain.ErrNotFound
	}
	s.builds[i].HeartbeatAt = at
	return nil
}

// ReclaimBuild finishes a running build whose heartbeat is older than staleBefore.
func (s *ManifestStore) ReclaimBuild(_ context.Context, record domain.BuildRecord, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.buildIndex(record.ID)
	if i < 0 || s.builds[i].Status != domain.BuildRunning ||
		!s.builds[i].HeartbeatAt.Before(staleBefore) {
		return false, nil
	}
	record.HeartbeatAt = s.builds[i].HeartbeatAt
	s.builds[i] = record
	return true, nil
}

func (s *ManifestStore) buildIndex(id string) int {
	return slices.IndexFunc(s.builds, func(b domain.BuildRecord) bool { return b.ID == id })
}

func (s *ManifestStore) runningIndex(artifact string) int {
	return slices.IndexFunc(s.builds, func(b domain.BuildRecord) bool {
		return b.ArtifactName == artifact && b.Status == domain.BuildRunning
	})
}

// Builds returns recent builds, newest first.
func (s *ManifestStore) Builds(_ context.Context, artifact string, limit int) ([]domain.BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.BuildRecord
	for i := len(s.builds) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if artifact == "" || s.builds[i].ArtifactName == artifact {
			out = append(out, s.builds[i])
		}
	}
	return out, nil
}

// RunningBuilds returns builds that never finished.
func (s *ManifestStore) RunningBuilds(_ context.Context) ([]domain.BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.BuildRecord
	for _, b := range s.builds {
		if b.Status == domain.BuildRunning {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func cloneEntry(e domain.ManifestEntry) domain.ManifestEntry {
	e.Dependencies = maps.Clone(e.Dependencies)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}
