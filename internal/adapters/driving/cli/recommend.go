package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var (
	recommendK         int
	recommendDiversify bool
	recommendJSON      bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [product-id]",
	Short: "List products similar to a product",
	Long: `Ranks the nearest neighbours of a product in the product index.
With --diversify the list is re-ranked with maximal marginal relevance so
near-duplicates do not crowd out alternatives.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().IntVarP(&recommendK, "limit", "n", domain.DefaultRecommendK, "maximum number of recommendations")
	recommendCmd.Flags().BoolVarP(&recommendDiversify, "diversify", "d", false, "re-rank for diversity")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "output recommendations as JSON")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid product id %q", domain.ErrValidation, args[0])
	}

	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	if svc.Recommend == nil {
		return errors.New("recommendation service not configured")
	}

	recs, err := svc.Recommend.Recommend(commandContext(cmd), domain.RecommendRequest{
		ItemID:    id,
		K:         recommendK,
		Diversify: recommendDiversify,
	})
	if err != nil {
		return fmt.Errorf("recommend failed: %w", hint(err))
	}

	if recommendJSON {
		if recs == nil {
			recs = []domain.Recommendation{}
		}
		return printJSON(cmd, recs)
	}

	if len(recs) == 0 {
		cmd.Println("No similar products found.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.title.Render(fmt.Sprintf("Similar to product %d:", id)))
	cmd.Println()
	for i, r := range recs {
		cmd.Printf("  [%d] product %d (%.3f)\n", i+1, r.ItemID, r.Score)
		if r.Reason != "" {
			cmd.Printf("      %s\n", st.muted.Render(truncate(r.Reason, st.width-6)))
		}
	}
	return nil
}
