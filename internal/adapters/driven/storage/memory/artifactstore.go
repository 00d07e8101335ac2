package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// Ensure ArtifactStore implements the interface.
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

type artifactKey struct {
	name       string
	generation uint64
}

// ArtifactStore keeps generation payloads in memory. Stored artifacts are
// shallow copies: entries are shared and must not be mutated by callers.
type ArtifactStore struct {
	mu        sync.RWMutex
	artifacts map[artifactKey]domain.IndexArtifact
}

// NewArtifactStore creates an empty artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{artifacts: make(map[artifactKey]domain.IndexArtifact)}
}

// Save stores an artifact. Saving an existing generation is an error.
func (s *ArtifactStore) Save(_ context.Context, name string, artifact *domain.IndexArtifact) error {
	key := artifactKey{name, artifact.Generation.ID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.artifacts[key]; exists {
		return fmt.Errorf("artifact %s generation %d already stored", name, key.generation)
	}
	s.artifacts[key] = copyArtifact(*artifact)
	return nil
}

// Load returns an artifact or domain.ErrNotFound.
func (s *ArtifactStore) Load(_ context.Context, name string, generation uint64) (*domain.IndexArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	art, ok := s.artifacts[artifactKey{name, generation}]
	if !ok {
		return nil, fmt.Errorf("artifact %s generation %d: %w", name, generation, domain.ErrNotFound)
	}
	out := copyArtifact(art)
	return &out, nil
}

// Exists reports whether an artifact is stored.
func (s *ArtifactStore) Exists(_ context.Context, name string, generation uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.artifacts[artifactKey{name, generation}]
	return ok, nil
}

// Delete removes an artifact.
func (s *ArtifactStore) Delete(_ context.Context, name string, generation uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, artifactKey{name, generation})
	return nil
}

// List returns stored generations of an artifact in ascending order.
func (s *ArtifactStore) List(_ context.Context, name string) ([]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uint64
	for k := range s.artifacts {
		if k.name == name {
			out = append(out, k.generation)
		}
	}
	slices.Sort(out)
	return out, nil
}

func copyArtifact(a domain.IndexArtifact) domain.IndexArtifact {
	a.Entries = slices.Clip(a.Entries)
	a.DocumentFrequency = maps.Clone(a.DocumentFrequency)
	return a
}
