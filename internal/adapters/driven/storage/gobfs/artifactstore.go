// Package gobfs stores index artifacts as gob files on the local filesystem,
// one file per (artifact name, generation id).
package gobfs

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// Ensure ArtifactStore implements the interface.
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

const fileExt = ".gob"

// ArtifactStore persists artifacts under root/<name>/<generation>.gob.
type ArtifactStore struct {
	root string
}

// NewArtifactStore creates a store rooted at dir.
// If dir is empty, defaults to ~/.smartmarket/artifacts.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".smartmarket", "artifacts")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	return &ArtifactStore{root: dir}, nil
}

// Root returns the store directory.
func (s *ArtifactStore) Root() string {
	return s.root
}

// Save encodes the artifact to a temporary file and renames it into place.
// Saving an existing generation is an error.
func (s *ArtifactStore) Save(_ context.Context, name string, artifact *domain.IndexArtifact) error {
	if artifact == nil {
		return fmt.Errorf("%w: nil artifact", domain.ErrValidation)
	}
	if err := checkName(name); err != nil {
		return err
	}

	path := s.path(name, artifact.Generation.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("artifact %s generation %d already stored", name, artifact.Generation.ID)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(artifact); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding artifact %s generation %d: %w", name, artifact.Generation.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publishing artifact: %w", err)
	}
	return nil
}

// Load decodes an artifact or returns domain.ErrNotFound.
func (s *ArtifactStore) Load(_ context.Context, name string, generation uint64) (*domain.IndexArtifact, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(name, generation))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s generation %d: %w", name, generation, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	var artifact domain.IndexArtifact
	if err := gob.NewDecoder(f).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: decoding artifact %s generation %d: %v",
			domain.ErrIntegrityViolation, name, generation, err)
	}
	return &artifact, nil
}

// Exists reports whether the artifact file is present.
func (s *ArtifactStore) Exists(_ context.Context, name string, generation uint64) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(name, generation))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes an artifact file. Deleting an absent artifact is not an error.
func (s *ArtifactStore) Delete(_ context.Context, name string, generation uint64) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name, generation))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// List returns the stored generations of an artifact in ascending order.
// Temporary files of interrupted saves are ignored.
func (s *ArtifactStore) List(_ context.Context, name string) ([]uint64, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}

	var out []uint64
	for _, e := range entries {
		base, ok := strings.CutSuffix(e.Name(), fileExt)
		if !ok || e.IsDir() {
			continue
		}
		gen, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, gen)
	}
	slices.Sort(out)
	return out, nil
}

func (s *ArtifactStore) path(name string, generation uint64) string {
	return filepath.Join(s.root, name, fmt.Sprintf("%020d%s", generation, fileExt))
}

// checkName rejects names that would escape the store directory.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: artifact name %q", domain.ErrValidation, name)
	}
	return nil
}
