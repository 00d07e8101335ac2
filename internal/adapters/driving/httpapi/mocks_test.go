package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

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
	_ []int64,
	_ int,
	_ bool,
) (map[int64][]domain.Recommendation, error) {
	return nil, m.err
}

type mockSearchService struct {
	hits    []domain.SearchHit
	err     error
	lastReq domain.SearchRequest
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) ([]domain.SearchHit, error) {
	m.lastReq = req
	return m.hits, m.err
}

type mockAssistantService struct {
	answer  *domain.Answer
	err     error
	lastReq domain.AskRequest
}

func (m *mockAssistantService) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.err
}

type mockStatusService struct {
	status *domain.Status
	err    error
}

func (m *mockStatusService) Status(_ context.Context) (*domain.Status, error) {
	return m.status, m.err
}

type mockManifestService struct {
	entry      *domain.ManifestEntry
	summary    []domain.ArtifactSummary
	violations []domain.IntegrityViolation
	err        error
}

func (m *mockManifestService) Current(_ context.Context, artifact string) (*domain.ManifestEntry, error) {
	if m.entry == nil || m.entry.ArtifactName != artifact {
		return nil, domain.ErrUnknownArtifact
	}
	return m.entry, m.err
}

func (m *mockManifestService) Validate(_ context.Context) ([]domain.IntegrityViolation, error) {
	return m.violations, m.err
}

func (m *mockManifestService) Summary(_ context.Context) ([]domain.ArtifactSummary, error) {
	return m.summary, m.err
}

type mockRebuildService struct {
	record   *domain.BuildRecord
	err      error
	artifact string
	force    bool
	changed  int
}

func (m *mockRebuildService) TriggerRebuild(_ context.Context, artifact string, force bool) (*domain.BuildRecord, error) {
	m.artifact = artifact
	m.force = force
	return m.record, m.err
}

func (m *mockRebuildService) CatalogChanged(_ context.Context) {
	m.changed++
}

type mockCacheService struct {
	stats       domain.CacheStats
	invalidated int
	err         error
}

func (m *mockCacheService) InvalidateAll(_ context.Context) error {
	m.invalidated++
	return m.err
}

func (m *mockCacheService) Stats(_ context.Context) domain.CacheStats {
	return m.stats
}

func newTestServer(t *testing.T, ports Ports, opts Options) *Server {
	t.Helper()
	if ports.Recommend == nil {
		ports.Recommend = &mockRecommendService{}
	}
	if ports.Search == nil {
		ports.Search = &mockSearchService{}
	}
	s, err := NewServer(ports, opts)
	require.NoError(t, err)
	return s
}

// send issues a request against the app without a network listener.
func send(t *testing.T, s *Server, method, target, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// do sends a request and decodes the JSON body into a map.
func do(t *testing.T, s *Server, method, target, body string) (int, map[string]any) {
	t.Helper()
	resp := send(t, s, method, target, body)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

type mockScheduler struct {
	tasks   []domain.TaskStatus
	err     error
	history int
	queued  []string
}

func (m *mockScheduler) Start(_ context.Context) error { return nil }

func (m *mockScheduler) Stop() error { return nil }

func (m *mockScheduler) RunNow(taskID string) {
	m.queued = append(m.queued, taskID)
}

func (m *mockScheduler) Tasks(_ context.Context, history int) ([]domain.TaskStatus, error) {
	m.history = history
	return m.tasks, m.err
}
