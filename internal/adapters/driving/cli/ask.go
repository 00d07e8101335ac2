package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var (
	askContext []string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the shopping assistant",
	Long: `Answers a question from the knowledge base (policies, guides, FAQ).
Every answer cites the passages it is based on. When no passage is relevant
enough the assistant says so instead of guessing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVar(&askContext, "context", nil, "caller context as key=value pairs")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	if svc.Assistant == nil {
		return errors.New("assistant service not configured")
	}

	req := domain.AskRequest{Question: strings.Join(args, " ")}
	if len(askContext) > 0 {
		req.Context = make(map[string]string, len(askContext))
		for _, kv := range askContext {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: context %q is not key=value", domain.ErrValidation, kv)
			}
			req.Context[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	answer, err := svc.Assistant.Ask(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", hint(err))
	}

	if askJSON {
		return printJSON(cmd, answer)
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(answer.Answer)
	cmd.Println()
	cmd.Println(st.muted.Render(fmt.Sprintf("confidence %.2f, trace %s", answer.Confidence, answer.TraceID)))
	if len(answer.Sources) == 0 {
		return nil
	}

	cmd.Println()
	cmd.Println(st.label.Render("Sources:"))
	for i, s := range answer.Sources {
		title := s.Title
		if title == "" {
			title = s.SourceDocumentID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, s.Score)
		if s.Excerpt != "" {
			cmd.Printf("      %s\n", st.muted.Render(truncate(s.Excerpt, st.width-6)))
		}
	}
	return nil
}
