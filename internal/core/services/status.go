package services

import (
	"context"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

// Verify interface compliance.
var _ driving.StatusService = (*StatusService)(nil)

// recentBuilds is the number of build records included in a status report.
const recentBuilds = 5

// StatusService reports cache health, the manifest and engine availability.
type StatusService struct {
	manifest  *Manifest
	cache     *Cache
	products  *IndexStore
	documents *IndexStore
	now       func() time.Time
}

// NewStatusService creates a status service.
func NewStatusService(manifest *Manifest, cache *Cache, products, documents *IndexStore) *StatusService {
	return &StatusService{
		manifest:  manifest,
		cache:     cache,
		products:  products,
		documents: documents,
		now:       time.Now,
	}
}

// Status returns the operational snapshot. The core is healthy when every
// engine has a live generation, no artifact is in violation and the cache
// backend answers.
func (s *StatusService) Status(ctx context.Context) (*domain.Status, error) {
	st := &domain.Status{
		CheckedAt: s.now().UTC(),
		Cache:     s.cache.Stats(ctx),
		Engines: []domain.EngineStatus{
			engineStatus(domain.EngineRecommend, s.products),
			engineStatus(domain.EngineSearch, s.products),
			engineStatus(domain.EngineAssistant, s.documents),
		},
	}

	summary, err := s.manifest.Summary(ctx)
	if err != nil {
		return nil, err
	}
	st.Manifest = summary

	violations, err := s.manifest.Validate(ctx)
	if err != nil {
		return nil, err
	}
	st.Violations = violations

	builds, err := s.manifest.Builds(ctx, "", recentBuilds)
	if err != nil {
		return nil, err
	}
	st.Builds = builds

	st.Healthy = st.Cache.Healthy && len(violations) == 0
	for _, e := range st.Engines {
		st.Healthy = st.Healthy && e.Available
	}
	return st, nil
}

func engineStatus(name string, store *IndexStore) domain.EngineStatus {
	es := domain.EngineStatus{Name: name}
	if store == nil {
		es.Reason = "not configured"
		return es
	}
	gen := store.Current()
	if gen == nil {
		es.Reason = "no index generation"
		return es
	}
	es.Available = true
	es.Generation = gen.ID()
	if gen.Info().VectorCount == 0 {
		es.Reason = "index has no rankable vectors"
	}
	return es
}
