package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var buildForce bool

var buildCmd = &cobra.Command{
	Use:   "build [artifact...]",
	Short: "Build and promote index generations",
	Long: `Builds a new generation of the named index artifacts, validates it and
promotes it in the manifest. Without arguments every index is built.

Artifacts:
  products_index   - product catalog embeddings
  documents_index  - knowledge base chunks

A generation younger than build.min_interval is kept unless --force is set.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildForce, "force", "f", false, "rebuild even if the live generation is recent")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	if svc.Rebuild == nil {
		return errors.New("rebuild service not configured")
	}

	artifacts := args
	if len(artifacts) == 0 {
		artifacts = domain.IndexArtifacts()
	}

	st := newStyles(cmd.OutOrStdout())
	var errs []error
	for _, artifact := range artifacts {
		cmd.Printf("Building %s...\n", artifact)
		rec, err := svc.Rebuild.TriggerRebuild(commandContext(cmd), artifact, buildForce)
		if err != nil {
			cmd.Printf("  %s %v\n", st.failure.Render("failed:"), err)
			errs = append(errs, fmt.Errorf("%s: %w", artifact, err))
			continue
		}
		printBuildRecord(cmd, st, rec)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

func printBuildRecord(cmd *cobra.Command, st *styles, rec *domain.BuildRecord) {
	switch rec.Status {
	case domain.BuildSkipped:
		cmd.Printf("  %s generation %d is recent (use --force to rebuild)\n",
			st.warning.Render("skipped:"), rec.Generation)
	case domain.BuildSucceeded:
		cmd.Printf("  %s generation %d, %d rows in %s\n",
			st.success.Render("promoted:"), rec.Generation, rec.RowCount, rec.Duration().Round(time.Millisecond))
	default:
		cmd.Printf("  %s %s\n", rec.Status, rec.Error)
	}
}
