package services

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// historyKeep is the number of results kept per task.
const historyKeep = 100

// rebuildRunner is the part of the Rebuilder the scheduler drives.
type rebuildRunner interface {
	TriggerWithRetry(ctx context.Context, artifact string, force bool) (*domain.BuildRecord, error)
}

// cachePurger is the part of the Cache the scheduler drives.
type cachePurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Scheduler runs periodic index rebuilds and cache maintenance. Task state
// and run history live in the SchedulerStore so schedules survive restarts.
type Scheduler struct {
	config  domain.SchedulerConfig
	store   driven.SchedulerStore
	rebuild rebuildRunner
	cache   cachePurger
	now     func() time.Time

	wake chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	stop    chan struct{}
	running map[string]bool
	forced  map[string]bool
}

// NewScheduler creates a scheduler. A nil rebuild or cache turns the
// matching tasks into no-ops.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	rebuild rebuildRunner,
	cache cachePurger,
) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	return &Scheduler{
		config:  config,
		store:   store,
		rebuild: rebuild,
		cache:   cache,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
		running: make(map[string]bool),
		forced:  make(map[string]bool),
	}
}

// Start registers the configured tasks and runs due ones until ctx is
// cancelled or Stop is called. It returns at once when the scheduler is
// disabled or already started.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info("scheduler: disabled")
		return nil
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	if err := s.syncTasks(ctx); err != nil {
		logger.Error("scheduler: registering tasks: %v", err)
	}

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		s.dispatchDue(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// Stop ends the loop and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// RunNow makes a task due immediately. Rebuild tasks triggered this way
// bypass the minimum rebuild interval.
func (s *Scheduler) RunNow(taskID string) {
	s.mu.Lock()
	s.forced[taskID] = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// syncTasks stores every configured built-in task and drops the ones whose
// schedule was removed.
func (s *Scheduler) syncTasks(ctx context.Context) error {
	for _, spec := range domain.BuiltinTasks() {
		cfg, ok := s.config.Task(spec.ID)
		if !ok {
			if err := s.store.DeleteTask(ctx, spec.ID); err != nil {
				return err
			}
			continue
		}
		if err := s.upsertTask(ctx, spec, cfg); err != nil {
			return err
		}
	}
	return nil
}

// Tasks returns every stored task with its most recent results, newest
// first. A non-positive history skips the results.
func (s *Scheduler) Tasks(ctx context.Context, history int) ([]domain.TaskStatus, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(tasks, func(a, b domain.ScheduledTask) int { return strings.Compare(a.ID, b.ID) })

	out := make([]domain.TaskStatus, 0, len(tasks))
	for _, task := range tasks {
		st := domain.TaskStatus{Task: task}
		s.mu.Lock()
		st.Running = s.running[task.ID]
		s.mu.Unlock()
		if history > 0 {
			if st.Recent, err = s.store.GetTaskHistory(ctx, task.ID, history); err != nil {
				return nil, err
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// upsertTask creates a task or applies a changed schedule to it. A new
// interval restarts the countdown.
func (s *Scheduler) upsertTask(ctx context.Context, spec domain.TaskSpec, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, spec.ID)
	if err != nil {
		return err
	}
	if task == nil {
		task = &domain.ScheduledTask{ID: spec.ID, Name: spec.Name}
	}
	if task.Interval != cfg.Interval {
		task.Interval = cfg.Interval
		task.NextRun = s.now().Add(cfg.Interval)
	}
	task.Enabled = cfg.Enabled
	return s.store.SaveTask(ctx, task)
}

// dispatchDue launches every enabled task that is due or forced and not
// already running.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: listing tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := &tasks[i]

		s.mu.Lock()
		force := s.forced[task.ID] && task.Enabled
		if s.running[task.ID] || !(force || task.Due(now)) {
			s.mu.Unlock()
			continue
		}
		delete(s.forced, task.ID)
		s.running[task.ID] = true
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if result := s.execute(ctx, task.ID, force); result != nil {
				s.record(ctx, task, result)
			}

			s.mu.Lock()
			delete(s.running, task.ID)
			s.mu.Unlock()
		}()
	}
}

// execute runs one task and reports its outcome, nil for unknown tasks.
func (s *Scheduler) execute(ctx context.Context, taskID string, force bool) *domain.TaskResult {
	result := &domain.TaskResult{TaskID: taskID, StartedAt: s.now()}

	var err error
	switch taskID {
	case domain.TaskIDRebuildProducts, domain.TaskIDRebuildDocuments:
		if s.rebuild == nil {
			break
		}
		var rec *domain.BuildRecord
		rec, err = s.rebuild.TriggerWithRetry(ctx, domain.ArtifactForTask(taskID), force)
		if rec != nil {
			result.Outcome = rec.Status
			result.GenerationID = rec.Generation
			result.RowsIndexed = rec.RowCount
		}
	case domain.TaskIDCachePurge:
		if s.cache != nil {
			result.RowsIndexed, err = s.cache.PurgeExpired(ctx)
		}
	default:
		logger.Warn("scheduler: unknown task %s", taskID)
		return nil
	}

	result.EndedAt = s.now()
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
		logger.Error("scheduler: task %s failed after %s: %v", taskID, result.Duration(), err)
	} else {
		logger.Debug("scheduler: task %s done in %s (%d rows)", taskID, result.Duration(), result.RowsIndexed)
	}
	return result
}

// record updates the task schedule and appends the result to the history.
// Store failures are logged, the next tick retries.
func (s *Scheduler) record(ctx context.Context, task *domain.ScheduledTask, result *domain.TaskResult) {
	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)
	task.LastError = result.Error
	if result.Success {
		task.LastSuccess = result.EndedAt
	}

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Error("scheduler: saving task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Error("scheduler: recording result of %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyKeep); err != nil {
		logger.Error("scheduler: pruning history: %v", err)
	}
}
