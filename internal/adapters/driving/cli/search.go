package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
)

var (
	searchK          int
	searchCategories []string
	searchMinPrice   float64
	searchMaxPrice   float64
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the product catalog",
	Long: `Performs hybrid search across the product index.
Blends semantic similarity with keyword (TF-IDF) overlap, then applies the
category and price filters.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "limit", "n", domain.DefaultSearchK, "maximum number of results")
	searchCmd.Flags().StringSliceVarP(&searchCategories, "category", "c", nil, "restrict to category ids (repeatable or comma separated)")
	searchCmd.Flags().Float64Var(&searchMinPrice, "min-price", 0, "inclusive lower price bound")
	searchCmd.Flags().Float64Var(&searchMaxPrice, "max-price", 0, "inclusive upper price bound")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, err := resolveServices(cmd)
	if err != nil {
		return err
	}
	if svc.Search == nil {
		return errors.New("search service not configured")
	}

	req := domain.SearchRequest{Query: args[0], K: searchK}
	req.Filters.CategoryIDs, err = parseIDs(searchCategories)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("min-price") {
		v := searchMinPrice
		req.Filters.MinPrice = &v
	}
	if cmd.Flags().Changed("max-price") {
		v := searchMaxPrice
		req.Filters.MaxPrice = &v
	}

	hits, err := svc.Search.Search(commandContext(cmd), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", hint(err))
	}

	if searchJSON {
		if hits == nil {
			hits = []domain.SearchHit{}
		}
		return printJSON(cmd, hits)
	}
	return outputSearchTable(cmd, req.Query, hits)
}

func outputSearchTable(cmd *cobra.Command, query string, hits []domain.SearchHit) error {
	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	st := newStyles(cmd.OutOrStdout())
	cmd.Println(st.title.Render(fmt.Sprintf("Results for %q:", query)))
	cmd.Println()
	for i := range hits {
		h := hits[i]
		cmd.Printf("  [%d] product %d (%.3f)\n", i+1, h.ItemID, h.Score)
		cmd.Printf("      %s\n", st.muted.Render(
			fmt.Sprintf("semantic %.3f, lexical %.3f", h.Semantic, h.Lexical)))
		if h.Reason != "" {
			cmd.Printf("      %s\n", truncate(h.Reason, st.width-6))
		}
	}
	return nil
}

// parseIDs accepts repeated and comma separated ids.
func parseIDs(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// hint adds the remedy to errors a user can fix from the command line.
func hint(err error) error {
	if errors.Is(err, domain.ErrNoGeneration) {
		return fmt.Errorf("%w (run 'smartmarket build' first)", err)
	}
	return err
}
