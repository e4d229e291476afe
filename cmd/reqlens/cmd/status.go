package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type statusOptions struct {
	format string
}

// statusReport is the JSON shape of the status command.
type statusReport struct {
	DataDir      string `json:"data_dir"`
	Requirements int    `json:"requirements"`
	Rules        int    `json:"rules"`
	Vectors      int    `json:"vectors"`
	Keywords     uint64 `json:"keywords"`
	Model        string `json:"model"`
	Dimensions   int    `json:"dimensions"`
	Available    bool   `json:"available"`
}

func newStatusCmd() *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status and embedding provider health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts statusOptions) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	reqCount, err := a.metadata.Count(ctx)
	if err != nil {
		return err
	}
	storedRules, err := a.metadata.ListRules(ctx)
	if err != nil {
		return err
	}
	kwCount, err := a.keywords.Count()
	if err != nil {
		return err
	}

	report := statusReport{
		DataDir:      a.cfg.DataDir(),
		Requirements: reqCount,
		Rules:        len(storedRules),
		Vectors:      a.vectors.Count(),
		Keywords:     kwCount,
		Model:        a.embedder.ModelName(),
		Dimensions:   a.embedder.Dimensions(),
		Available:    a.embedder.Available(ctx),
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		return writeJSON(out, report)
	}

	fmt.Fprintf(out, "Data directory: %s\n", report.DataDir)
	fmt.Fprintf(out, "Requirements:   %d\n", report.Requirements)
	fmt.Fprintf(out, "Business rules: %d\n", report.Rules)
	fmt.Fprintf(out, "Vectors:        %d\n", report.Vectors)
	fmt.Fprintf(out, "Keyword docs:   %d\n", report.Keywords)
	fmt.Fprintf(out, "Embedding:      %s (%d dims, available=%t)\n",
		report.Model, report.Dimensions, report.Available)
	return nil
}
