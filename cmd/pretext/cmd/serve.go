package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pretextml/pretext/internal/catalog"
	"github.com/pretextml/pretext/internal/config"
	"github.com/pretextml/pretext/internal/logging"
	"github.com/pretextml/pretext/internal/mcp"
	"github.com/pretextml/pretext/internal/pipeline"
)

func newServeCmd() *cobra.Command {
	var (
		transport string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server for AI assistant integration.

Exposes the built corpus over the Model Context Protocol:
  - corpus_search: full-text search over indexed sentences
  - corpus_stats:  latest build statistics and histogram

The server speaks JSON-RPC on stdin/stdout, so nothing else may be
written to stdout; all logging goes to the log file.`,
		Example: `  # Start the server (stdin must be an MCP client pipe)
  pretext serve

  # With verbose logging
  pretext serve --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, transport, debug)
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "stdio", "Transport type (stdio)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, transport string, debug bool) error {
	// MCP-safe logging first: stdout belongs to the protocol, so the
	// log file is the only sink. Nothing below may print.
	level := "info"
	if debug || debugMode {
		level = "debug"
	}
	logCleanup, err := logging.SetupMCPMode(level)
	if err == nil {
		defer logCleanup()
	}

	if err := verifyStdinForMCP(); err != nil {
		return err
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	resolveConfigPaths(cfg, root)

	manifestPath := pipeline.ManifestPath(cfg)
	if !fileExists(manifestPath) {
		return fmt.Errorf("no manifest found at %s. Run 'pretext build' first", manifestPath)
	}

	manifest, err := catalog.OpenManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { _ = manifest.Close() }()

	// The index is optional: corpus_search reports it missing, while
	// corpus_stats keeps working from the manifest alone.
	var index catalog.SentenceIndex
	indexBase := pipeline.IndexBasePath(cfg)
	if cfg.Index.Enabled && indexExists(indexBase) {
		backend := catalog.DetectBackend(indexBase)
		index, err = catalog.NewSentenceIndex(indexBase, backend)
		if err != nil {
			slog.Warn("failed to open sentence index, search disabled",
				slog.String("error", err.Error()))
			index = nil
		} else {
			defer func() { _ = index.Close() }()
		}
	}

	server, err := mcp.NewServer(manifest, index, cfg, cfg.Output.Path)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer func() { _ = server.Close() }()

	return server.Serve(ctx, transport)
}

// verifyStdinForMCP checks that stdin is a pipe, not a terminal. MCP
// clients speak JSON-RPC over stdin; running interactively just hangs.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe: serve expects an MCP client to provide JSON-RPC on stdin (configure your client to launch 'pretext serve')")
	}
	return nil
}
