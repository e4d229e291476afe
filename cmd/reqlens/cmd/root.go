// Package cmd provides the CLI commands for reqlens.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/reqlens/reqlens/internal/logging"
	"github.com/reqlens/reqlens/pkg/version"
)

// Shared persistent flags.
var (
	debugMode      bool
	dataDirFlag    string
	offlineMode    bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the reqlens CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reqlens",
		Short: "Requirement analysis and semantic retrieval MCP server",
		Long: `Reqlens ingests requirement sets, extracts business rules, classifies
each requirement, and serves hybrid (semantic + keyword + rule) search
over the result, both as a CLI and as an MCP server for AI assistants.

Run 'reqlens ingest <file>' to build an index, then 'reqlens serve' to
expose it over MCP, or 'reqlens search' to query it directly.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// Default flow: serve the existing index over stdio.
			return runServe(cmd.Context(), serveOptions{transport: "stdio"})
		},
	}

	cmd.SetVersionTemplate("reqlens version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.reqlens/logs/")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Index data directory (default ~/.reqlens/index)")
	cmd.PersistentFlags().BoolVar(&offlineMode, "offline", false, "Use static embeddings (skip remote embedding providers)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSampleCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging initializes file logging. MCP transports reserve stdout for
// JSON-RPC, so log output goes to stderr and the rotating log file only.
func startLogging(_ *cobra.Command, _ []string) error {
	cleanup, err := logging.SetupDefault(debugMode)
	if err != nil {
		// Logging is observability, not a prerequisite; run without it.
		slog.Warn("file logging unavailable", slog.String("error", err.Error()))
		return nil
	}
	loggingCleanup = cleanup
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
