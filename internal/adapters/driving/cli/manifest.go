package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driving"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Inspect the artifact manifest",
	Long: `The manifest records the current version of every artifact: the
embedding model and each index generation, with its dependencies and
integrity hash.`,
	Args: cobra.NoArgs,
	RunE: runManifestList,
}

var manifestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current artifacts",
	Args:  cobra.NoArgs,
	RunE:  runManifestList,
}

var manifestShowCmd = &cobra.Command{
	Use:   "show [artifact]",
	Short: "Show the current entry of an artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifestShow,
}

var manifestValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check dependencies and integrity hashes",
	Long: `Verifies that every current artifact was built against the current
version of its dependencies and that stored payloads match their hashes.
Exits non-zero when a violation is found.`,
	Args: cobra.NoArgs,
	RunE: runManifestValidate,
}

func init() {
	manifestCmd.AddCommand(manifestListCmd)
	manifestCmd.AddCommand(manifestShowCmd)
	manifestCmd.AddCommand(manifestValidateCmd)
	rootCmd.AddCommand(manifestCmd)
}

func manifestService(cmd *cobra.Command) (driving.ManifestService, error) {
	svc, err := resolveServices(cmd)
	if err != nil {
		return nil, err
	}
	if svc.Manifest == nil {
		return nil, errors.New("manifest service not configured")
	}
	return svc.Manifest, nil
}

func runManifestList(cmd *cobra.Command, _ []string) error {
	manifest, err := manifestService(cmd)
	if err != nil {
		return err
	}

	summary, err := manifest.Summary(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	printSummary(cmd, newStyles(cmd.OutOrStdout()), summary)
	return nil
}

func runManifestShow(cmd *cobra.Command, args []string) error {
	manifest, err := manifestService(cmd)
	if err != nil {
		return err
	}

	entry, err := manifest.Current(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("reading manifest entry: %w", err)
	}
	return printJSON(cmd, entry)
}

func runManifestValidate(cmd *cobra.Command, _ []string) error {
	manifest, err := manifestService(cmd)
	if err != nil {
		return err
	}

	violations, err := manifest.Validate(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("validating manifest: %w", err)
	}

	st := newStyles(cmd.OutOrStdout())
	if len(violations) == 0 {
		cmd.Println(st.success.Render("Manifest is consistent."))
		return nil
	}
	printViolations(cmd, st, violations)
	return fmt.Errorf("%w: %d artifact(s) in violation", domain.ErrIntegrityViolation, len(violations))
}
