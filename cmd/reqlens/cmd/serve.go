package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "github.com/reqlens/reqlens/internal/mcp"
)

type serveOptions struct {
	transport string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server over stdio.

The server exposes search_requirements, search_business_rules,
extract_entities, classify_text, ingest_file, and index_status tools.
MCP reserves stdout for protocol messages, so all diagnostics go to
stderr and the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.transport, "transport", "t", "stdio", "Transport to serve on (stdio)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := mcpserver.NewServer(mcpserver.Deps{
		Engine:     a.engine,
		Pipeline:   a.pipeline,
		Language:   a.lang,
		Extractor:  a.extractor,
		Classifier: a.classifier,
		Embedder:   a.embedder,
		Vectors:    a.vectors,
		Metadata:   a.metadata,
		Config:     a.cfg,
	})
	if err != nil {
		return err
	}

	slog.Info("serving",
		slog.String("transport", opts.transport),
		slog.String("data_dir", a.cfg.DataDir()))
	return srv.Serve(ctx, opts.transport)
}
