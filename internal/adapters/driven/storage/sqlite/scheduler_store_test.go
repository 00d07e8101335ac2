package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()
	ctx := context.Background()

	now := time.Now().UTC()
	task := &domain.ScheduledTask{
		ID:          "rebuild-products",
		Name:        "Rebuild product index",
		Interval:    time.Hour,
		LastRun:     now.Add(-30 * time.Minute),
		NextRun:     now.Add(30 * time.Minute),
		LastSuccess: now.Add(-30 * time.Minute),
		Enabled:     true,
	}
	require.NoError(t, ss.SaveTask(ctx, task))

	got, err := ss.GetTask(ctx, "rebuild-products")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, task.Interval, got.Interval)
	assert.True(t, got.Enabled)
	assert.True(t, task.LastRun.Equal(got.LastRun))
	assert.True(t, task.NextRun.Equal(got.NextRun))
	assert.True(t, task.LastSuccess.Equal(got.LastSuccess))
	assert.Empty(t, got.LastError)
}

func TestSchedulerStore_GetTask_NotFound(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()

	task, err := ss.GetTask(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, task)
}

func TestSchedulerStore_SaveTask_Update(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()
	ctx := context.Background()

	task := &domain.ScheduledTask{ID: "purge-cache", Name: "Purge cache", Interval: time.Minute, Enabled: true}
	require.NoError(t, ss.SaveTask(ctx, task))

	task.Enabled = false
	task.LastError = "upstream timeout"
	task.Interval = 5 * time.Minute
	require.NoError(t, ss.SaveTask(ctx, task))

	got, err := ss.GetTask(ctx, "purge-cache")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, "upstream timeout", got.LastError)
	assert.Equal(t, 5*time.Minute, got.Interval)
}

func TestSchedulerStore_SaveTask_Invalid(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()
	ctx := context.Background()

	assert.ErrorIs(t, ss.SaveTask(ctx, nil), domain.ErrValidation)
	assert.ErrorIs(t, ss.SaveTask(ctx, &domain.ScheduledTask{Name: "no id"}), domain.ErrValidation)
}

func TestSchedulerStore_ListAndDeleteTasks(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()
	ctx := context.Background()

	tasks, err := ss.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	for _, id := range []string{"rebuild-products", "purge-cache"} {
		require.NoError(t, ss.SaveTask(ctx, &domain.ScheduledTask{ID: id, Name: id, Interval: time.Hour}))
	}

	tasks, err = ss.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "purge-cache", tasks[0].ID)
	assert.Zero(t, tasks[0].LastRun)

	require.NoError(t, ss.DeleteTask(ctx, "purge-cache"))
	require.NoError(t, ss.DeleteTask(ctx, "purge-cache"))

	tasks, err = ss.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "rebuild-products", tasks[0].ID)
}

func TestSchedulerStore_RecordResultAndHistory(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID:       "rebuild-products",
		StartedAt:    base,
		EndedAt:      base.Add(time.Second),
		Success:      true,
		Outcome:      domain.BuildSucceeded,
		GenerationID: 4,
		RowsIndexed:  120,
	}))
	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID:    "rebuild-products",
		StartedAt: base.Add(time.Hour),
		EndedAt:   base.Add(time.Hour + time.Second),
		Error:     "upstream timeout",
		Outcome:   domain.BuildFailed,
	}))
	require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
		TaskID:    "purge-cache",
		StartedAt: base,
		EndedAt:   base,
		Success:   true,
	}))

	history, err := ss.GetTaskHistory(ctx, "rebuild-products", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.False(t, history[0].Success)
	assert.Equal(t, "upstream timeout", history[0].Error)
	assert.Equal(t, domain.BuildFailed, history[0].Outcome)

	assert.True(t, history[1].Success)
	assert.Equal(t, domain.BuildSucceeded, history[1].Outcome)
	assert.Equal(t, uint64(4), history[1].GenerationID)
	assert.Equal(t, 120, history[1].RowsIndexed)
	assert.True(t, base.Equal(history[1].StartedAt))

	purge, err := ss.GetTaskHistory(ctx, "purge-cache", 0)
	require.NoError(t, err)
	require.Len(t, purge, 1)
	assert.Empty(t, purge[0].Outcome)

	limited, err := ss.GetTaskHistory(ctx, "rebuild-products", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty, err := ss.GetTaskHistory(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSchedulerStore_RecordResult_Invalid(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()

	assert.ErrorIs(t, ss.RecordResult(context.Background(), nil), domain.ErrValidation)
	assert.ErrorIs(t, ss.RecordResult(context.Background(), &domain.TaskResult{}), domain.ErrValidation)
}

func TestSchedulerStore_PruneHistory(t *testing.T) {
	ss := setupTestStore(t).SchedulerStore()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		started := base.Add(time.Duration(i) * time.Minute)
		for _, id := range []string{"a", "b"} {
			require.NoError(t, ss.RecordResult(ctx, &domain.TaskResult{
				TaskID: id, StartedAt: started, EndedAt: started, Success: true, RowsIndexed: i,
			}))
		}
	}

	require.NoError(t, ss.PruneHistory(ctx, 2))

	for _, id := range []string{"a", "b"} {
		history, err := ss.GetTaskHistory(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, history, 2, id)
		assert.Equal(t, 4, history[0].RowsIndexed)
		assert.Equal(t, 3, history[1].RowsIndexed)
	}

	require.NoError(t, ss.PruneHistory(ctx, 0))
	history, err := ss.GetTaskHistory(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
