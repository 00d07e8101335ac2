package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driving/httpapi"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

var (
	serveAddr        string
	serveRateLimit   int
	serveNoScheduler bool
	serveNoWatch     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the JSON API under /api/v1:

  GET    /api/v1/products/:id/recommendations?k=&diversity=
  GET    /api/v1/search?q=&k=&category=&min_price=&max_price=
  POST   /api/v1/assistant/ask
  GET    /api/v1/ml/status
  GET    /api/v1/ml/manifest
  POST   /api/v1/ml/rebuild/:artifact
  GET    /api/v1/ml/cache
  DELETE /api/v1/ml/cache

The scheduler rebuilds indexes and purges the cache in the background, and
catalog changes trigger a product index rebuild.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from server.addr)")
	serveCmd.Flags().IntVar(&serveRateLimit, "rate-limit", 0, "requests per client and minute, 0 disables (default from server.rate_limit)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "do not run background rebuilds")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not watch the catalog for changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}

	addr := svc.ServerAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	if addr == "" {
		addr = ":8080"
	}
	rate := svc.RateLimit
	if cmd.Flags().Changed("rate-limit") {
		rate = serveRateLimit
	}

	server, err := httpapi.NewServer(httpapi.Ports{
		Recommend: svc.Recommend,
		Search:    svc.Search,
		Assistant: svc.Assistant,
		Status:    svc.Status,
		Manifest:  svc.Manifest,
		Rebuild:   svc.Rebuild,
		Cache:     svc.Cache,
		Scheduler: svc.Scheduler,
	}, httpapi.Options{
		Version:   version,
		RateLimit: rate,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wait := startBackground(ctx, svc, !serveNoScheduler, !serveNoWatch)
	defer wait()

	cmd.Printf("SmartMarket API listening on %s\n", addr)
	return server.Listen(ctx, addr)
}

// startBackground runs the scheduler and the catalog watcher until ctx is
// done. The returned function stops them and waits for running tasks.
func startBackground(ctx context.Context, svc *Services, scheduler, watch bool) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	if scheduler && svc.Scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("scheduler stopped: %v", err)
			}
		}()
	}

	if watch && svc.WatchCatalog != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.WatchCatalog(ctx); err != nil {
				logger.Warn("catalog watch stopped: %v", err)
			}
		}()
	}

	return func() {
		cancel()
		if scheduler && svc.Scheduler != nil {
			if err := svc.Scheduler.Stop(); err != nil {
				logger.Warn("scheduler stop error: %v", err)
			}
		}
		wg.Wait()
	}
}
