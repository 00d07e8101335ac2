package cli

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

func TestTasksCmd_Lists(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	start := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	ts.scheduler.tasks = []domain.TaskStatus{
		{
			Task: domain.ScheduledTask{
				ID: domain.TaskIDRebuildProducts, Name: "Rebuild product index",
				Interval: time.Hour, Enabled: true, NextRun: start.Add(time.Hour),
				LastError: "catalog unreachable",
			},
			Recent: []domain.TaskResult{{
				TaskID: domain.TaskIDRebuildProducts, StartedAt: start, EndedAt: start.Add(2 * time.Second),
				Success: true, Outcome: domain.BuildSucceeded, GenerationID: 7, RowsIndexed: 120,
			}},
		},
		{Task: domain.ScheduledTask{ID: domain.TaskIDCachePurge, Interval: 30 * time.Minute}, Running: true},
	}

	out, err := execute("tasks")

	require.NoError(t, err)
	assert.Contains(t, out, "rebuild-products enabled  every 1h0m0s")
	assert.Contains(t, out, "next run:     2026-05-04T04:02:01Z")
	assert.Contains(t, out, "last success: never")
	assert.Contains(t, out, "last error:   catalog unreachable")
	assert.Contains(t, out, "2s succeeded gen 7 (120 rows)")
	assert.Contains(t, out, "cache-purge running")
	assert.Contains(t, out, "next run:     due")
}

func TestTasksCmd_Empty(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("tasks")

	require.NoError(t, err)
	assert.Contains(t, out, "No tasks yet")
}

func TestTasksCmd_JSON(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.scheduler.tasks = []domain.TaskStatus{{Task: domain.ScheduledTask{ID: domain.TaskIDCachePurge}}}

	out, err := execute("tasks", "--json", "--history", "1")
	require.NoError(t, err)

	var got []domain.TaskStatus
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, domain.TaskIDCachePurge, got[0].Task.ID)
}

func TestTasksCmd_Errors(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.scheduler.err = errors.New("db locked")

	_, err := execute("tasks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")

	services.Scheduler = nil
	_, err = execute("tasks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler not configured")
}
