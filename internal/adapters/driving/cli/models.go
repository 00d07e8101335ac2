package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var modelsCheckJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List model providers or check the configured backends",
	Args:  cobra.NoArgs,
	RunE:  runModelsList,
}

var modelsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the configured embedding and answer backends",
	Long: `Sends a probe to the configured embedding backend and answer generator.
The local providers always pass. Exits non-zero when a backend does not answer.`,
	Args: cobra.NoArgs,
	RunE: runModelsCheck,
}

func init() {
	modelsCheckCmd.Flags().BoolVar(&modelsCheckJSON, "json", false, "output results as JSON")
	modelsCmd.AddCommand(modelsCheckCmd)
	rootCmd.AddCommand(modelsCmd)
}

// errModelCheck is returned after printing a failed check.
var errModelCheck = errors.New("model check failed")

func runModelsList(cmd *cobra.Command, _ []string) error {
	st := newStyles(cmd.OutOrStdout())
	embedding := domain.DefaultEmbeddingModels()
	llm := domain.DefaultLLMModels()

	cmd.Println(st.label.Render("Embedding providers:"))
	for _, p := range domain.AllEmbeddingProviders() {
		cmd.Printf("  %-10s %-24s %s\n", p, p.Description(), st.muted.Render(embedding[p]))
	}
	cmd.Println()
	cmd.Println(st.label.Render("Answer providers:"))
	for _, p := range domain.AllLLMProviders() {
		cmd.Printf("  %-10s %-24s %s\n", p, p.Description(), st.muted.Render(llm[p]))
	}
	return nil
}

func runModelsCheck(cmd *cobra.Command, _ []string) error {
	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	if svc.Models == nil {
		return errors.New("model service not configured")
	}

	checks := svc.Models.Check(commandContext(cmd))
	failed := false
	for _, c := range checks {
		failed = failed || !c.OK()
	}

	if modelsCheckJSON {
		if err := printJSON(cmd, checks); err != nil {
			return err
		}
	} else {
		st := newStyles(cmd.OutOrStdout())
		for _, c := range checks {
			line := fmt.Sprintf("%-10s %s/%s %s", c.Role, c.Provider, c.Model, st.yesNo(c.OK(), "ok", "failed"))
			if !c.OK() {
				line += " " + st.muted.Render(c.Error)
			}
			cmd.Println(line)
		}
	}

	if failed {
		return errModelCheck
	}
	return nil
}
