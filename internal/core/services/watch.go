package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// DefaultQuietPeriod coalesces bursts of catalog changes into one rebuild.
const DefaultQuietPeriod = 2 * time.Second

// WatchCatalog forwards catalog change signals to the rebuild service.
// Signals received within quiet of each other result in a single
// CatalogChanged call once the catalog has been quiet. Blocks until ctx
// is done or the notifier closes its channel.
func WatchCatalog(ctx context.Context, notifier driven.ChangeNotifier, rebuild driving.RebuildService, quiet time.Duration) error {
	changes, err := notifier.Changes(ctx)
	if err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}
	logger.Info("watching catalog for changes")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				if fire != nil && ctx.Err() == nil {
					rebuild.CatalogChanged(ctx)
				}
				logger.Debug("catalog watcher stopped")
				return nil
			}
			if quiet <= 0 {
				rebuild.CatalogChanged(ctx)
				continue
			}
			if timer == nil {
				timer = time.NewTimer(quiet)
			} else {
				timer.Reset(quiet)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			rebuild.CatalogChanged(ctx)
		}
	}
}
