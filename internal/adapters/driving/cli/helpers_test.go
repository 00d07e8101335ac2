package cli

import (
	"bytes"
	"context"
	"time"

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
	records   map[string]*domain.BuildRecord
	errs      map[string]error
	artifacts []string
	force     bool
}

func (m *mockRebuildService) TriggerRebuild(_ context.Context, artifact string, force bool) (*domain.BuildRecord, error) {
	m.artifacts = append(m.artifacts, artifact)
	m.force = force
	if err := m.errs[artifact]; err != nil {
		return nil, err
	}
	if rec, ok := m.records[artifact]; ok {
		return rec, nil
	}
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.BuildRecord{
		ArtifactName: artifact,
		Generation:   1,
		Status:       domain.BuildSucceeded,
		StartedAt:    start,
		EndedAt:      start.Add(1500 * time.Millisecond),
		RowCount:     3,
	}, nil
}

func (m *mockRebuildService) CatalogChanged(_ context.Context) {}

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

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	recommend *mockRecommendService
	search    *mockSearchService
	assistant *mockAssistantService
	status    *mockStatusService
	manifest  *mockManifestService
	rebuild   *mockRebuildService
	cache     *mockCacheService
	models    *mockModelService
	scheduler *fakeScheduler
}

// setupTestServices installs mock services and resets command flags.
// The returned function restores the previous state.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		recommend: &mockRecommendService{},
		search:    &mockSearchService{},
		assistant: &mockAssistantService{answer: &domain.Answer{
			Answer:     domain.InsufficientInformationAnswer,
			Sources:    []domain.Source{},
			TraceID:    "trace-1",
			Status:     domain.AnswerStatusNoSources,
			Confidence: 0,
		}},
		status: &mockStatusService{status: &domain.Status{
			Healthy: true,
			Cache:   domain.CacheStats{Backend: "memory", Healthy: true},
		}},
		manifest:  &mockManifestService{},
		rebuild:   &mockRebuildService{},
		cache:     &mockCacheService{},
		models:    &mockModelService{},
		scheduler: &fakeScheduler{},
	}

	servicesMu.Lock()
	oldServices, oldLoader := services, loader
	services = &Services{
		Recommend: ts.recommend,
		Search:    ts.search,
		Assistant: ts.assistant,
		Status:    ts.status,
		Manifest:  ts.manifest,
		Rebuild:   ts.rebuild,
		Cache:     ts.cache,
		Models:    ts.models,
		Scheduler: ts.scheduler,
	}
	loader = nil
	servicesMu.Unlock()
	resetFlags()

	return ts, func() {
		servicesMu.Lock()
		services, loader = oldServices, oldLoader
		servicesMu.Unlock()
		resetFlags()
	}
}

// resetFlags restores flag variables between executions of the shared root command.
func resetFlags() {
	searchK = domain.DefaultSearchK
	searchCategories = nil
	searchMinPrice, searchMaxPrice = 0, 0
	searchJSON = false
	recommendK = domain.DefaultRecommendK
	recommendDiversify = false
	recommendJSON = false
	askContext = nil
	askJSON = false
	buildForce = false
	statusJSON = false
	modelsCheckJSON = false
	versionJSON = false
	configListAll = false
	configForce = false
	tasksHistory = 3
	tasksJSON = false
	mcpPort = 0
	mcpScheduler = false
	for _, name := range []string{"min-price", "max-price"} {
		if f := searchCmd.Flags().Lookup(name); f != nil {
			f.Changed = false
		}
	}
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
