package mcp

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// mockRecommendService is a mock implementation of driving.RecommendationService.
type mockRecommendService struct {
	recs    []domain.Recommendation
	err     error
	lastReq domain.RecommendRequest
}

func (m *mockRecommendService) Recommend(_ context.Context, req domain.RecommendRequest) ([]domain.Recommendation, error) {
	m.lastReq = req
	return m.recs, m.err
}

func (m *mockRecommendService) RecommendMany(
	_ context.Context,
	ids []int64,
	_ int,
	_ bool,
) (map[int64][]domain.Recommendation, error) {
	out := make(map[int64][]domain.Recommendation, len(ids))
	for _, id := range ids {
		out[id] = m.recs
	}
	return out, m.err
}

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	hits    []domain.SearchHit
	err     error
	lastReq domain.SearchRequest
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	m.lastReq = req
	return m.hits, m.err
}

// mockAssistantService is a mock implementation of driving.AssistantService.
type mockAssistantService struct {
	answer *domain.Answer
	err    error
}

func (m *mockAssistantService) Ask(_ context.Context, _ domain.AskRequest) (*domain.Answer, error) {
	return m.answer, m.err
}

// mockStatusService is a mock implementation of driving.StatusService.
type mockStatusService struct {
	status *domain.Status
	err    error
}

func (m *mockStatusService) Status(_ context.Context) (*domain.Status, error) {
	return m.status, m.err
}

// mockManifestService is a mock implementation of driving.ManifestService.
type mockManifestService struct {
	entries    map[string]*domain.ManifestEntry
	summary    []domain.ArtifactSummary
	violations []domain.IntegrityViolation
	err        error
}

func (m *mockManifestService) Current(_ context.Context, artifact string) (*domain.ManifestEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	entry, ok := m.entries[artifact]
	if !ok {
		return nil, domain.ErrUnknownArtifact
	}
	return entry, nil
}

func (m *mockManifestService) Validate(_ context.Context) ([]domain.IntegrityViolation, error) {
	return m.violations, m.err
}

func (m *mockManifestService) Summary(_ context.Context) ([]domain.ArtifactSummary, error) {
	return m.summary, m.err
}

func requiredPorts() *Ports {
	return &Ports{
		Recommend: &mockRecommendService{},
		Search:    &mockSearchService{},
	}
}
