package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// --- Mock implementations for scheduler testing ---

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	listErr  error
	pruneErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task == nil {
		return domain.ErrValidation
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrValidation
	}
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return m.pruneErr
}

func (m *mockSchedulerStore) history(taskID string) []domain.TaskResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.TaskResult(nil), m.results[taskID]...)
}

// mockRebuildRunner records rebuild triggers.
type mockRebuildRunner struct {
	mu      sync.Mutex
	calls   []string
	forced  []bool
	err     error
	record  *domain.BuildRecord
	release chan struct{}
}

func (m *mockRebuildRunner) TriggerWithRetry(_ context.Context, artifact string, force bool) (*domain.BuildRecord, error) {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, artifact)
	m.forced = append(m.forced, force)
	return m.record, m.err
}

func (m *mockRebuildRunner) snapshot() ([]string, []bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...), append([]bool(nil), m.forced...)
}

// mockCachePurger returns a fixed purge count.
type mockCachePurger struct {
	purged int
	err    error
}

func (m *mockCachePurger) PurgeExpired(_ context.Context) (int, error) {
	return m.purged, m.err
}

// Ensure mocks implement interfaces
var _ driven.SchedulerStore = (*mockSchedulerStore)(nil)
var _ rebuildRunner = (*mockRebuildRunner)(nil)
var _ cachePurger = (*mockCachePurger)(nil)

func dueTask(id string) *domain.ScheduledTask {
	return &domain.ScheduledTask{
		ID:       id,
		Name:     id,
		Interval: time.Hour,
		NextRun:  time.Now().Add(-time.Minute),
		Enabled:  true,
	}
}

// ==================== Scheduler Tests ====================

func TestNewScheduler(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	config.TickInterval = 0

	scheduler := NewScheduler(config, newMockSchedulerStore(), nil, nil)

	require.NotNil(t, scheduler)
	assert.Equal(t, time.Minute, scheduler.config.TickInterval)
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), &mockRebuildRunner{}, &mockCachePurger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- scheduler.Start(ctx)
	}()

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)

	// Stop without starting should be safe
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_DoubleStart(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), &mockRebuildRunner{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	// Second start should return immediately (already running)
	assert.NoError(t, scheduler.Start(context.Background()))

	cancel()
	scheduler.Stop() //nolint:errcheck
	wg.Wait()
}

func TestScheduler_SyncTasks(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil)
	ctx := context.Background()

	require.NoError(t, scheduler.syncTasks(ctx))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	products, err := store.GetTask(ctx, domain.TaskIDRebuildProducts)
	require.NoError(t, err)
	require.NotNil(t, products)
	assert.Equal(t, "Rebuild product index", products.Name)
	assert.Equal(t, time.Hour, products.Interval)
	assert.True(t, products.Enabled)
	assert.True(t, products.NextRun.After(time.Now()))

	purge, err := store.GetTask(ctx, domain.TaskIDCachePurge)
	require.NoError(t, err)
	require.NotNil(t, purge)
	assert.Equal(t, 30*time.Minute, purge.Interval)
}

func TestScheduler_SyncTasks_SkipsUnconfigured(t *testing.T) {
	store := newMockSchedulerStore()
	config := domain.SchedulerConfig{
		Enabled: true,
		Tasks: map[string]domain.TaskConfig{
			domain.TaskIDCachePurge: {Enabled: true, Interval: time.Minute},
		},
	}
	scheduler := NewScheduler(config, store, nil, nil)

	require.NoError(t, scheduler.syncTasks(context.Background()))
	tasks, err := store.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskIDCachePurge, tasks[0].ID)
}

func TestScheduler_UpsertTask_UpdateInterval(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil)
	ctx := context.Background()

	taskCfg := domain.TaskConfig{Enabled: true, Interval: time.Hour}
	require.NoError(t, scheduler.upsertTask(ctx, domain.TaskSpec{ID: "test-task", Name: "Test Task"}, taskCfg))

	taskCfg.Interval = 2 * time.Hour
	taskCfg.Enabled = false
	require.NoError(t, scheduler.upsertTask(ctx, domain.TaskSpec{ID: "test-task", Name: "Test Task"}, taskCfg))

	task, err := store.GetTask(ctx, "test-task")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, task.Interval)
	assert.False(t, task.Enabled)
}

func TestScheduler_RunsDueRebuild(t *testing.T) {
	store := newMockSchedulerStore()
	rebuild := &mockRebuildRunner{record: &domain.BuildRecord{
		Status:     domain.BuildSucceeded,
		Generation: 4,
		RowCount:   7,
	}}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, rebuild, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDRebuildProducts)))
	notDue := dueTask(domain.TaskIDRebuildDocuments)
	notDue.NextRun = time.Now().Add(time.Hour)
	require.NoError(t, store.SaveTask(ctx, notDue))

	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()

	calls, forced := rebuild.snapshot()
	assert.Equal(t, []string{domain.ArtifactProductIndex}, calls)
	assert.Equal(t, []bool{false}, forced)

	history := store.history(domain.TaskIDRebuildProducts)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, domain.BuildSucceeded, history[0].Outcome)
	assert.Equal(t, uint64(4), history[0].GenerationID)
	assert.Equal(t, 7, history[0].RowsIndexed)

	task, err := store.GetTask(ctx, domain.TaskIDRebuildProducts)
	require.NoError(t, err)
	assert.True(t, task.NextRun.After(time.Now()))
	assert.False(t, task.LastSuccess.IsZero())
	assert.Empty(t, task.LastError)
}

func TestScheduler_RecordsFailedRebuild(t *testing.T) {
	store := newMockSchedulerStore()
	rebuild := &mockRebuildRunner{
		record: &domain.BuildRecord{Status: domain.BuildFailed},
		err:    errors.New("catalog unreachable"),
	}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, rebuild, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDRebuildDocuments)))
	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()

	history := store.history(domain.TaskIDRebuildDocuments)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, domain.BuildFailed, history[0].Outcome)
	assert.Contains(t, history[0].Error, "catalog unreachable")

	task, err := store.GetTask(ctx, domain.TaskIDRebuildDocuments)
	require.NoError(t, err)
	assert.Equal(t, "catalog unreachable", task.LastError)
}

func TestScheduler_RunNowForcesRebuild(t *testing.T) {
	store := newMockSchedulerStore()
	rebuild := &mockRebuildRunner{record: &domain.BuildRecord{Status: domain.BuildSucceeded}}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, rebuild, nil)
	ctx := context.Background()

	task := dueTask(domain.TaskIDRebuildProducts)
	task.NextRun = time.Now().Add(time.Hour)
	require.NoError(t, store.SaveTask(ctx, task))

	scheduler.RunNow(domain.TaskIDRebuildProducts)
	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()

	calls, forced := rebuild.snapshot()
	assert.Equal(t, []string{domain.ArtifactProductIndex}, calls)
	assert.Equal(t, []bool{true}, forced)

	// The force flag is consumed by the run.
	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()
	calls, _ = rebuild.snapshot()
	assert.Len(t, calls, 1)
}

func TestScheduler_SkipsTaskInFlight(t *testing.T) {
	store := newMockSchedulerStore()
	rebuild := &mockRebuildRunner{release: make(chan struct{})}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, rebuild, nil)
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDRebuildProducts)))

	scheduler.dispatchDue(ctx)
	scheduler.dispatchDue(ctx)
	close(rebuild.release)
	scheduler.wg.Wait()

	calls, _ := rebuild.snapshot()
	assert.Len(t, calls, 1)
}

func TestScheduler_DisabledTaskNeverRuns(t *testing.T) {
	store := newMockSchedulerStore()
	rebuild := &mockRebuildRunner{}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, rebuild, nil)
	ctx := context.Background()

	task := dueTask(domain.TaskIDRebuildProducts)
	task.Enabled = false
	require.NoError(t, store.SaveTask(ctx, task))

	scheduler.RunNow(domain.TaskIDRebuildProducts)
	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()

	calls, _ := rebuild.snapshot()
	assert.Empty(t, calls)
}

func TestScheduler_CachePurge(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, &mockCachePurger{purged: 12})
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDCachePurge)))
	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()

	history := store.history(domain.TaskIDCachePurge)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 12, history[0].RowsIndexed)
}

func TestScheduler_ListFailureIsLogged(t *testing.T) {
	store := newMockSchedulerStore()
	store.listErr = errors.New("db locked")
	rebuild := &mockRebuildRunner{}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, rebuild, nil)

	scheduler.dispatchDue(context.Background())
	scheduler.wg.Wait()

	calls, _ := rebuild.snapshot()
	assert.Empty(t, calls)
}

func TestScheduler_UnknownTaskIsSkipped(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil)
	ctx := context.Background()

	assert.Nil(t, scheduler.execute(ctx, "unknown-task", false))

	require.NoError(t, store.SaveTask(ctx, dueTask("unknown-task")))
	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()
	assert.Empty(t, store.history("unknown-task"))
}

func TestScheduler_DisabledConfigReturns(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	config.Enabled = false
	store := newMockSchedulerStore()
	scheduler := NewScheduler(config, store, &mockRebuildRunner{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, scheduler.Start(ctx))
	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)

	for range 2 {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- scheduler.Start(ctx) }()
		require.Eventually(t, func() bool {
			scheduler.mu.Lock()
			defer scheduler.mu.Unlock()
			return scheduler.stop != nil
		}, time.Second, time.Millisecond)

		require.NoError(t, scheduler.Stop())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop")
		}
		cancel()
	}
}

func TestScheduler_SyncTasks_DropsUnscheduled(t *testing.T) {
	store := newMockSchedulerStore()
	ctx := context.Background()
	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDRebuildDocuments)))

	scheduler := NewScheduler(domain.NewSchedulerConfig(0, time.Minute), store, nil, nil)
	require.NoError(t, scheduler.syncTasks(ctx))

	task, err := store.GetTask(ctx, domain.TaskIDRebuildDocuments)
	require.NoError(t, err)
	assert.Nil(t, task)
	purge, err := store.GetTask(ctx, domain.TaskIDCachePurge)
	require.NoError(t, err)
	assert.NotNil(t, purge)
}

func TestScheduler_Tasks(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, &mockCachePurger{purged: 2})
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDCachePurge)))
	require.NoError(t, store.SaveTask(ctx, dueTask(domain.TaskIDRebuildProducts)))
	scheduler.dispatchDue(ctx)
	scheduler.wg.Wait()

	got, err := scheduler.Tasks(ctx, 5)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, domain.TaskIDCachePurge, got[0].Task.ID)
	assert.Equal(t, domain.TaskIDRebuildProducts, got[1].Task.ID)
	require.Len(t, got[0].Recent, 1)
	assert.Equal(t, 2, got[0].Recent[0].RowsIndexed)
	assert.False(t, got[0].Running)

	bare, err := scheduler.Tasks(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, bare[0].Recent)
}

func TestScheduler_TasksListFailure(t *testing.T) {
	store := newMockSchedulerStore()
	store.listErr = errors.New("db locked")
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil)

	_, err := scheduler.Tasks(context.Background(), 1)
	assert.Error(t, err)
}
