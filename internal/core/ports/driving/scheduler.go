package driving

import (
	"context"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

// Scheduler runs periodic rebuilds and cache maintenance.
type Scheduler interface {
	// Start blocks running due tasks until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends Start and waits for running tasks.
	Stop() error

	// RunNow makes a task due at once.
	RunNow(taskID string)

	// Tasks lists the stored tasks with up to history recent results each.
	Tasks(ctx context.Context, history int) ([]domain.TaskStatus, error)
}
