package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqlens/reqlens/internal/source"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample [path]",
		Short: "Write a sample requirements CSV for experimentation",
		Long: `Write a small mortgage-domain requirements CSV to try the pipeline
without real data:

  reqlens sample
  reqlens ingest sample_requirements.csv --offline
  reqlens search "mortgage approval rules"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "sample_requirements.csv"
			if len(args) == 1 {
				path = args[0]
			}

			n, err := source.WriteSampleCSV(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d sample requirement(s) to %s\n", n, path)
			return nil
		},
	}

	return cmd
}
