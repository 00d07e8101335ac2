package domain

import "time"

// Built-in task IDs.
const (
	TaskIDRebuildProducts  = "rebuild-products"
	TaskIDRebuildDocuments = "rebuild-documents"
	TaskIDCachePurge       = "cache-purge"
)

// TaskSpec names a task the scheduler knows how to run.
type TaskSpec struct {
	ID   string
	Name string
}

// BuiltinTasks lists the tasks in the order they are checked.
func BuiltinTasks() []TaskSpec {
	return []TaskSpec{
		{TaskIDRebuildProducts, "Rebuild product index"},
		{TaskIDRebuildDocuments, "Rebuild knowledge base index"},
		{TaskIDCachePurge, "Purge expired cache entries"},
	}
}

// ScheduledTask is the persisted state of a recurring task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time

	// LastError is empty after a successful run.
	LastError string
}

// Due reports whether an enabled task should run at now. A task that never
// ran is always due.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !t.NextRun.After(now))
}

// TaskResult is one run of a task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// Outcome is the build status for rebuild tasks.
	Outcome BuildStatus

	// GenerationID is the generation live after the run, zero if none.
	GenerationID uint64

	// RowsIndexed counts the rows the run processed: entries of the built
	// generation, or purged cache entries.
	RowsIndexed int
}

// Duration is how long the run took.
func (r *TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TaskStatus is a task with its latest results, newest first.
type TaskStatus struct {
	Task    ScheduledTask `json:"task"`
	Running bool          `json:"running"`
	Recent  []TaskResult  `json:"recent,omitempty"`
}

// TaskConfig is the schedule of one task. A zero interval removes the task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig configures the background scheduler.
type SchedulerConfig struct {
	// Enabled is the master switch.
	Enabled bool

	// TickInterval is how often due tasks are checked.
	TickInterval time.Duration

	Tasks map[string]TaskConfig
}

// Task returns the schedule of taskID and whether it is configured.
func (c SchedulerConfig) Task(taskID string) (TaskConfig, bool) {
	tc, ok := c.Tasks[taskID]
	return tc, ok && tc.Interval > 0
}

// NewSchedulerConfig rebuilds both indexes every rebuildEvery and purges
// the cache every purgeEvery. A non-positive interval disables that task.
func NewSchedulerConfig(rebuildEvery, purgeEvery time.Duration) SchedulerConfig {
	return SchedulerConfig{
		Enabled:      true,
		TickInterval: time.Minute,
		Tasks: map[string]TaskConfig{
			TaskIDRebuildProducts:  {Enabled: rebuildEvery > 0, Interval: max(rebuildEvery, 0)},
			TaskIDRebuildDocuments: {Enabled: rebuildEvery > 0, Interval: max(rebuildEvery, 0)},
			TaskIDCachePurge:       {Enabled: purgeEvery > 0, Interval: max(purgeEvery, 0)},
		},
	}
}

// Default task intervals.
const (
	DefaultRebuildInterval    = time.Hour
	DefaultCachePurgeInterval = 30 * time.Minute
)

// DefaultSchedulerConfig rebuilds both indexes hourly and purges expired
// cache entries every 30 minutes.
func DefaultSchedulerConfig() SchedulerConfig {
	return NewSchedulerConfig(DefaultRebuildInterval, DefaultCachePurgeInterval)
}

// ArtifactForTask returns the index artifact a rebuild task builds.
func ArtifactForTask(taskID string) string {
	switch taskID {
	case TaskIDRebuildProducts:
		return ArtifactProductIndex
	case TaskIDRebuildDocuments:
		return ArtifactDocumentIndex
	default:
		return ""
	}
}
