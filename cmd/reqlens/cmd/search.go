package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reqlens/reqlens/internal/search"
	"github.com/reqlens/reqlens/internal/store"
)

type searchOptions struct {
	limit    int
	category string
	format   string
	rules    bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed requirements",
		Long: `Search the indexed requirement set using hybrid retrieval.

Semantic similarity, keyword relevance, and business-rule matches fuse
into a single ranking. Queries mentioning rules, conditions, or
policies automatically surface the matching rules on each result.

Examples:
  reqlens search "mortgage approval rules"
  reqlens search "document upload" --category functional --limit 5
  reqlens search "credit score" --rules
  reqlens search "response time" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Filter by category: functional, non-functional, business-rule, other")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.rules, "rules", false, "Search extracted business rules instead of requirements")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if opts.rules {
		hits, err := a.engine.SearchRules(ctx, query, opts.limit)
		if err != nil {
			return err
		}
		if opts.format == "json" {
			return writeJSON(out, hits)
		}
		return writeRuleHits(out, query, hits)
	}

	results, err := a.engine.Search(ctx, query, search.Options{
		Limit:         opts.limit,
		Category:      store.Category(opts.category),
		RuleThreshold: a.cfg.Analysis.RuleConfidenceThreshold,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return writeJSON(out, results)
	}
	return writeResults(out, query, results)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResults(out io.Writer, query string, results []*search.Result) error {
	if len(results) == 0 {
		fmt.Fprintf(out, "No results for %q\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d result(s) for %q:\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%s] %s (score %.3f, %s)\n",
			i+1, r.Requirement.ID, r.Requirement.Name, r.Score, r.Requirement.Category)
		fmt.Fprintf(out, "   %s\n", firstLine(r.Requirement.Text))
		for _, rule := range r.MatchedRules {
			fmt.Fprintf(out, "   rule (%s, %.2f): %s\n", rule.Kind, rule.Confidence, rule.Condition)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func writeRuleHits(out io.Writer, query string, hits []*search.RuleResult) error {
	if len(hits) == 0 {
		fmt.Fprintf(out, "No rules match %q\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d rule(s) for %q:\n\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintf(out, "%d. [%s] %s rule (score %.3f)\n",
			i+1, h.RequirementID, h.Rule.Kind, h.Score)
		fmt.Fprintf(out, "   condition: %s\n", h.Rule.Condition)
		if h.Rule.Action != "" {
			fmt.Fprintf(out, "   action:    %s\n", h.Rule.Action)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// firstLine keeps CLI output one line per requirement.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
