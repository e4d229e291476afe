package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reqlens/reqlens/internal/nlp"
	"github.com/reqlens/reqlens/internal/store"
)

type analyzeOptions struct {
	format string
}

// analysisReport is the JSON shape of one analyze run.
type analysisReport struct {
	Text       string                `json:"text"`
	Category   store.Category        `json:"category"`
	Confidence float64               `json:"confidence"`
	Entities   []store.Entity        `json:"entities,omitempty"`
	Rules      []*store.BusinessRule `json:"rules,omitempty"`
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <text>",
		Short: "Analyze a single requirement text",
		Long: `Run the enrichment pipeline on one piece of text without indexing it:
entity detection, business-rule extraction, and classification.

Examples:
  reqlens analyze "If credit score is above 650, then approve the application."
  reqlens analyze "The system shall respond within 2 seconds." --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, text string, opts analyzeOptions) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc := nlp.Normalize(a.lang, text)
	extracted := a.extractor.Extract(doc)
	classification, err := a.classifier.Classify(ctx, text, extracted)
	if err != nil {
		return err
	}

	report := analysisReport{
		Text:       text,
		Category:   classification.Category,
		Confidence: classification.Confidence,
		Entities:   doc.Entities,
		Rules:      extracted,
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		return writeJSON(out, report)
	}

	fmt.Fprintf(out, "Category: %s (confidence %.2f)\n", report.Category, report.Confidence)

	if len(report.Entities) > 0 {
		fmt.Fprintf(out, "\nEntities:\n")
		for _, e := range report.Entities {
			fmt.Fprintf(out, "  %-16s %q\n", e.Type, e.Text)
		}
	}

	if len(report.Rules) > 0 {
		fmt.Fprintf(out, "\nBusiness rules:\n")
		for _, r := range report.Rules {
			fmt.Fprintf(out, "  %s (confidence %.2f)\n", r.Kind, r.Confidence)
			fmt.Fprintf(out, "    condition: %s\n", r.Condition)
			if r.Action != "" {
				fmt.Fprintf(out, "    action:    %s\n", r.Action)
			}
		}
	} else {
		fmt.Fprintf(out, "\nNo business rules detected.\n")
	}

	return nil
}
