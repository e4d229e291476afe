package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/reqlens/reqlens/internal/pipeline"
	"github.com/reqlens/reqlens/internal/source"
)

type ingestOptions struct {
	remote  bool
	sample  bool
	workers int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest requirement files into the index",
		Long: `Ingest requirements from CSV, JSON, text, or Markdown files, or from
the configured remote requirements API, and build the searchable index.

Each requirement is normalized, scanned for business rules, classified,
and embedded before it is persisted.

Examples:
  reqlens ingest requirements.csv
  reqlens ingest specs/*.md
  reqlens ingest --remote
  reqlens ingest --sample`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.remote && !opts.sample {
				return fmt.Errorf("nothing to ingest: pass at least one file, --remote, or --sample")
			}
			return runIngest(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.remote, "remote", false, "Fetch requirements from the configured remote API")
	cmd.Flags().BoolVar(&opts.sample, "sample", false, "Generate and ingest the bundled sample corpus")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Enrichment worker count (default: CPU count)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, files []string, opts ingestOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.workers > 0 {
		cfg.Ingest.Workers = opts.workers
	}

	a, err := openAppWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	var totalIndexed, totalSkipped int

	if opts.sample {
		samplePath := filepath.Join(cfg.DataDir(), "sample_requirements.csv")
		if _, err := source.WriteSampleCSV(samplePath); err != nil {
			return err
		}
		files = append(files, samplePath)
	}

	for _, path := range files {
		result, err := source.ReadFile(path, cfg.Ingest)
		if err != nil {
			return err
		}
		stats, err := a.pipeline.Ingest(ctx, result.Requirements)
		if err != nil {
			return err
		}
		reportRun(out, path, stats, result.Skipped)
		totalIndexed += stats.Indexed
		totalSkipped += stats.Skipped + result.Skipped
	}

	if opts.remote {
		indexed, skipped, err := ingestRemote(ctx, cmd, a)
		if err != nil {
			return err
		}
		totalIndexed += indexed
		totalSkipped += skipped
	}

	fmt.Fprintf(out, "Done: %d requirement(s) indexed, %d skipped\n", totalIndexed, totalSkipped)
	return nil
}

func ingestRemote(ctx context.Context, cmd *cobra.Command, a *app) (indexed, skipped int, err error) {
	client, err := source.NewRemoteClient(a.cfg.Source)
	if err != nil {
		return 0, 0, err
	}

	fetch, err := client.FetchAll(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(fetch.FailedPages) > 0 {
		slog.Warn("some pages could not be fetched",
			slog.Int("failed_pages", len(fetch.FailedPages)))
		fmt.Fprintf(cmd.OutOrStdout(), "Warning: %d page(s) failed after retries; ingesting %d of %d records\n",
			len(fetch.FailedPages), len(fetch.Requirements), fetch.Total)
	}

	stats, err := a.pipeline.Ingest(ctx, fetch.Requirements)
	if err != nil {
		return 0, 0, err
	}
	reportRun(cmd.OutOrStdout(), a.cfg.Source.BaseURL, stats, 0)
	return stats.Indexed, stats.Skipped, nil
}

func reportRun(out io.Writer, origin string, stats *pipeline.Stats, readSkipped int) {
	fmt.Fprintf(out, "%s: %d indexed, %d skipped (%s, run %s)\n",
		origin, stats.Indexed, stats.Skipped+readSkipped,
		stats.Duration.Round(time.Millisecond), stats.RunID)
}
