package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*schedulerStore)(nil)

// schedulerStore keeps rebuild and purge schedules plus their run history.
type schedulerStore struct {
	store *Store
}

const (
	taskColumns   = `id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled`
	resultColumns = `task_id, started_at, ended_at, success, error, outcome, generation_id, rows_indexed`
)

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, taskID)
	task, err := scanTask(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading task %s: %w", taskID, err)
	}
	return &task, nil
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return collect(rows, scanTask)
}

// SaveTask inserts the task or replaces the stored state of the same id.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task id is required", domain.ErrValidation)
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name             = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run         = excluded.last_run,
			next_run         = excluded.next_run,
			last_error       = excluded.last_error,
			last_success     = excluded.last_success,
			enabled          = excluded.enabled`,
		task.ID,
		task.Name,
		int64(task.Interval/time.Second),
		formatNullableTime(task.LastRun),
		formatNullableTime(task.NextRun),
		nullString(task.LastError),
		formatNullableTime(task.LastSuccess),
		boolToInt(task.Enabled),
	)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a task. Its history stays until PruneHistory.
func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("deleting task %s: %w", taskID, err)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil || result.TaskID == "" {
		return fmt.Errorf("%w: task result needs a task id", domain.ErrValidation)
	}
	_, err := s.store.db.ExecContext(ctx, `INSERT INTO task_results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.TaskID,
		formatTime(result.StartedAt),
		formatTime(result.EndedAt),
		boolToInt(result.Success),
		nullString(result.Error),
		nullString(string(result.Outcome)),
		int64(result.GenerationID),
		result.RowsIndexed,
	)
	if err != nil {
		return fmt.Errorf("recording result of %s: %w", result.TaskID, err)
	}
	return nil
}

// GetTaskHistory returns the newest results first. A non-positive limit
// returns them all.
func (s *schedulerStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+resultColumns+` FROM task_results
		WHERE task_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", taskID, err)
	}
	return collect(rows, scanResult)
}

// PruneHistory keeps the newest keep results of every task.
func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_results WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS pos
				FROM task_results
			) WHERE pos > ?
		)`, max(keep, 0))
	if err != nil {
		return fmt.Errorf("pruning task history: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (domain.ScheduledTask, error) {
	var (
		task                                   domain.ScheduledTask
		seconds                                int64
		enabled                                int
		lastRun, nextRun, lastSuccess, lastErr sql.NullString
	)
	err := row.Scan(&task.ID, &task.Name, &seconds, &lastRun, &nextRun, &lastErr, &lastSuccess, &enabled)
	if err != nil {
		return task, err
	}
	task.Interval = time.Duration(seconds) * time.Second
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.LastError = lastErr.String
	task.Enabled = enabled == 1
	return task, nil
}

func scanResult(row rowScanner) (domain.TaskResult, error) {
	var (
		result          domain.TaskResult
		started, ended  string
		success         int
		generation      int64
		errMsg, outcome sql.NullString
	)
	err := row.Scan(&result.TaskID, &started, &ended, &success, &errMsg, &outcome, &generation, &result.RowsIndexed)
	if err != nil {
		return result, err
	}
	result.StartedAt = parseTime(started)
	result.EndedAt = parseTime(ended)
	result.Success = success == 1
	result.Error = errMsg.String
	result.Outcome = domain.BuildStatus(outcome.String)
	result.GenerationID = uint64(generation)
	return result, nil
}
