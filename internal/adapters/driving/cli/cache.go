package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached result",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cacheService(cmd *cobra.Command) (driving.CacheService, error) {
	svc, err := resolveServices(cmd)
	if err != nil {
		return nil, err
	}
	if svc.Cache == nil {
		return nil, errors.New("cache service not configured")
	}
	return svc.Cache, nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	cache, err := cacheService(cmd)
	if err != nil {
		return err
	}

	stats := cache.Stats(commandContext(cmd))
	st := newStyles(cmd.OutOrStdout())
	cmd.Printf("Backend:  %s (%s)\n", stats.Backend, st.yesNo(stats.Healthy, "healthy", "unhealthy"))
	cmd.Printf("Entries:  %d\n", stats.Entries)
	cmd.Printf("Hits:     %d\n", stats.Hits)
	cmd.Printf("Misses:   %d\n", stats.Misses)
	cmd.Printf("Hit rate: %.1f%%\n", stats.HitRate()*100)
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	cache, err := cacheService(cmd)
	if err != nil {
		return err
	}

	if err := cache.InvalidateAll(commandContext(cmd)); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	cmd.Println("Cache cleared.")
	return nil
}
