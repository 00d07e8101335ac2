// Package cli implements the smartmarket command line.
//
// Commands resolve the retrieval services lazily through the loader set by
// the composition root, so commands such as version never touch storage
// or model backends.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var verbose bool

// Services holds the driving ports the commands call.
type Services struct {
	Recommend driving.RecommendationService
	Search    driving.SearchService
	Assistant driving.AssistantService
	Status    driving.StatusService
	Manifest  driving.ManifestService
	Rebuild   driving.RebuildService
	Cache     driving.CacheService
	Scheduler driving.Scheduler
	Models    driving.ModelService

	// WatchCatalog blocks until ctx is done, rebuilding the product index
	// when the catalog changes. Nil disables watching.
	WatchCatalog func(ctx context.Context) error

	// ServerAddr is the default HTTP listen address.
	ServerAddr string

	// RateLimit caps public API requests per client and minute.
	RateLimit int
}

// Loader builds the services on first use.
type Loader func(ctx context.Context) (*Services, error)

var (
	servicesMu sync.Mutex
	services   *Services
	loader     Loader
)

var rootCmd = &cobra.Command{
	Use:   "smartmarket",
	Short: "Product recommendations, hybrid search and a RAG assistant",
	Long: `SmartMarket serves the retrieval features of the marketplace:
similar-product recommendations, hybrid semantic and keyword product search,
and a question answering assistant grounded in the knowledge base.

Indexes are built into immutable generations and swapped atomically, so
queries never observe a half-built index.`,
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command and the servers.
func SetVersion(v string) {
	version = v
}

// SetServices installs ready services, bypassing the loader.
func SetServices(s *Services) {
	servicesMu.Lock()
	defer servicesMu.Unlock()
	services = s
}

// SetLoader sets the function that builds the services on first use.
func SetLoader(l Loader) {
	servicesMu.Lock()
	defer servicesMu.Unlock()
	loader = l
}

// Execute runs the root command. Command output goes to stdout.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

// resolveServices returns the installed services, running the loader once if needed.
func resolveServices(cmd *cobra.Command) (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	if services != nil {
		return services, nil
	}
	if loader == nil {
		return nil, errors.New("services not configured")
	}

	s, err := loader(commandContext(cmd))
	if err != nil {
		return nil, fmt.Errorf("initialising services: %w", err)
	}
	services = s
	return services, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
