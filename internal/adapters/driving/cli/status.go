package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine, index and cache health",
	Long: `Reports whether every engine has a live index generation, the current
manifest, integrity violations, cache effectiveness and recent builds.
Exits non-zero when the core is unhealthy.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

// errUnhealthy is returned after printing an unhealthy report.
var errUnhealthy = errors.New("retrieval core is unhealthy")

func runStatus(cmd *cobra.Command, _ []string) error {
	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	if svc.Status == nil {
		return errors.New("status service not configured")
	}

	status, err := svc.Status.Status(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if statusJSON {
		if err := printJSON(cmd, status); err != nil {
			return err
		}
	} else {
		printStatus(cmd, status)
	}

	if !status.Healthy {
		return errUnhealthy
	}
	return nil
}

func printStatus(cmd *cobra.Command, status *domain.Status) {
	st := newStyles(cmd.OutOrStdout())

	cmd.Printf("%s %s\n", st.title.Render("SmartMarket"),
		st.yesNo(status.Healthy, "healthy", "unhealthy"))
	cmd.Println(st.muted.Render("checked " + status.CheckedAt.Format(time.RFC3339)))
	cmd.Println()

	cmd.Println(st.label.Render("Engines:"))
	for _, e := range status.Engines {
		line := fmt.Sprintf("  %-10s %s", e.Name, st.yesNo(e.Available, "available", "unavailable"))
		if e.Generation > 0 {
			line += fmt.Sprintf(" (generation %d)", e.Generation)
		}
		if e.Reason != "" {
			line += " " + st.muted.Render(e.Reason)
		}
		cmd.Println(line)
	}
	cmd.Println()

	printSummary(cmd, st, status.Manifest)
	printViolations(cmd, st, status.Violations)

	c := status.Cache
	cmd.Println(st.label.Render("Cache:"))
	cmd.Printf("  %s %s, %d entries, hit rate %.1f%% (%d hits, %d misses)\n",
		c.Backend, st.yesNo(c.Healthy, "healthy", "unhealthy"),
		c.Entries, c.HitRate()*100, c.Hits, c.Misses)

	if len(status.Builds) > 0 {
		cmd.Println()
		cmd.Println(st.label.Render("Recent builds:"))
		for _, b := range status.Builds {
			cmd.Printf("  %-16s gen %-4d %-9s %s", b.ArtifactName, b.Generation, b.Status,
				b.StartedAt.Format(time.RFC3339))
			if b.Error != "" {
				cmd.Printf(" %s", st.failure.Render(truncate(b.Error, 60)))
			}
			cmd.Println()
		}
	}
}

func printSummary(cmd *cobra.Command, st *styles, summary []domain.ArtifactSummary) {
	cmd.Println(st.label.Render("Artifacts:"))
	if len(summary) == 0 {
		cmd.Println("  none registered")
		cmd.Println()
		return
	}
	for _, a := range summary {
		cmd.Printf("  %-16s %-24s %6d rows  %s", a.ArtifactName, a.Version, a.RowCount,
			a.BuiltAt.Format(time.RFC3339))
		if a.Model != "" {
			cmd.Printf("  %s", st.muted.Render(a.Model))
		}
		cmd.Println()
	}
	cmd.Println()
}

func printViolations(cmd *cobra.Command, st *styles, violations []domain.IntegrityViolation) {
	if len(violations) == 0 {
		return
	}
	cmd.Println(st.failure.Render("Integrity violations:"))
	for _, v := range violations {
		cmd.Printf("  %s\n", v.String())
	}
	cmd.Println()
}
