package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pretextml/pretext/internal/config"
	pxerrors "github.com/pretextml/pretext/internal/errors"
	"github.com/pretextml/pretext/internal/output"
	"github.com/pretextml/pretext/internal/pipeline"
	"github.com/pretextml/pretext/internal/ui"
	"github.com/pretextml/pretext/internal/verify"
	"github.com/pretextml/pretext/internal/watcher"
	"github.com/pretextml/pretext/pkg/version"
)

// buildOptions holds CLI flags for build.
type buildOptions struct {
	dataset   string
	outPath   string
	format    string
	textField string
	workers   int
	noIndex   bool
	force     bool
	noTUI     bool
	watch     bool
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the pre-training corpus",
		Long: `Build the pre-training corpus from the configured dataset.

This reads the dataset, strips markup from each document, splits the
text into sentences, and writes the corpus file: one sentence per line,
a blank line between documents, all characters escaped to printable
ASCII. A manifest database and a sentence search index are written next
to the corpus unless disabled.

Flags override the corresponding .pretext.yaml settings for this run.
Use --watch to keep rebuilding whenever the dataset changes.`,
		Example: `  # Build with the configured dataset
  pretext build

  # Build from an explicit dataset file
  pretext build --dataset data/docstrings.jsonl --output corpus.txt

  # Rebuild on every dataset change
  pretext build --watch

  # Plain-text progress (no TUI), skip the sentence index
  pretext build --no-tui --no-index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Signal handling so Ctrl+C cancels the pipeline and the
			// partially written corpus is discarded, not published.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runBuild(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "Dataset file or directory (overrides dataset.path)")
	cmd.Flags().StringVar(&opts.outPath, "output", "", "Corpus output file (overrides output.path)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Dataset format: auto, jsonl, text")
	cmd.Flags().StringVar(&opts.textField, "text-field", "", "JSONL field holding the document body")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel clean/split workers (default: NumCPU)")
	cmd.Flags().BoolVar(&opts.noIndex, "no-index", false, "Skip building the sentence search index")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Discard the existing manifest and index before building")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild whenever the dataset changes")

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, opts buildOptions) error {
	cleanup := setupCommandLogging()
	defer cleanup()

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := loadBuildConfig(root, opts)
	if err != nil {
		return err
	}

	// Environment checks before touching the output: disk space and
	// write permission on the corpus directory.
	if results := verify.Preflight(filepath.Dir(cfg.Output.Path)); verify.HasCriticalFailures(results) {
		v := verify.New(verify.WithOutput(cmd.OutOrStdout()))
		v.PrintResults(results)
		code := pxerrors.ErrCodeCorpusWrite
		for _, r := range results {
			if r.Name == "disk_space" && r.Status == verify.StatusFail {
				code = pxerrors.ErrCodeDiskFull
			}
		}
		return pxerrors.New(code, "output directory failed pre-build checks", nil).
			WithSuggestion("Free disk space or choose a writable --output location.")
	}

	if opts.force {
		if err := clearCatalogData(cfg); err != nil {
			return fmt.Errorf("failed to clear manifest and index: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cleared existing manifest and index, starting fresh...")
		slog.Info("build_force_clear",
			slog.String("manifest", pipeline.ManifestPath(cfg)),
			slog.String("index", pipeline.IndexBasePath(cfg)))
	}

	if opts.watch {
		return runWatch(ctx, cmd, root, opts)
	}

	_, err = runBuildOnce(ctx, cmd, cfg, opts.noTUI)
	return err
}

// loadBuildConfig loads the project configuration and applies CLI flag
// overrides. Flag paths resolve against the working directory; config
// file paths resolve against the project root.
func loadBuildConfig(root string, opts buildOptions) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		var pe *pxerrors.PretextError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, pxerrors.ConfigError("failed to load configuration", err)
	}

	if opts.dataset != "" {
		cfg.Dataset.Path = absPath(opts.dataset)
	}
	if opts.outPath != "" {
		cfg.Output.Path = absPath(opts.outPath)
	}
	if opts.format != "" {
		cfg.Dataset.Format = opts.format
	}
	if opts.textField != "" {
		cfg.Dataset.TextField = opts.textField
	}
	if opts.workers > 0 {
		cfg.Build.Workers = opts.workers
	}
	if opts.noIndex {
		cfg.Index.Enabled = false
	}

	resolveConfigPaths(cfg, root)

	if cfg.Dataset.Path == "" {
		return nil, pxerrors.New(pxerrors.ErrCodeConfigInvalid, "no dataset configured", nil).
			WithSuggestion("Pass --dataset or set dataset.path in .pretext.yaml.")
	}

	return cfg, nil
}

// resolveConfigPaths anchors relative config paths at the project root,
// per the documented config semantics.
func resolveConfigPaths(cfg *config.Config, root string) {
	if cfg.Dataset.Path != "" && !filepath.IsAbs(cfg.Dataset.Path) {
		cfg.Dataset.Path = filepath.Join(root, cfg.Dataset.Path)
	}
	if cfg.Output.Path != "" && !filepath.IsAbs(cfg.Output.Path) {
		cfg.Output.Path = filepath.Join(root, cfg.Output.Path)
	}
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// clearCatalogData removes the build manifest and both sentence index
// backends. The corpus file itself is left alone; the next build
// replaces it atomically.
func clearCatalogData(cfg *config.Config) error {
	manifest := pipeline.ManifestPath(cfg)
	indexBase := pipeline.IndexBasePath(cfg)

	stale := []string{
		manifest,
		manifest + "-wal",
		manifest + "-shm",
		indexBase + ".db",
		indexBase + ".db-wal",
		indexBase + ".db-shm",
		indexBase + ".bleve",
	}

	for _, path := range stale {
		if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}

	return nil
}

// runBuildOnce executes a single pipeline run with a progress renderer.
func runBuildOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, noTUI bool) (*pipeline.Result, error) {
	uiCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithCorpusPath(cfg.Output.Path))
	renderer := ui.NewRenderer(uiCfg)
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("failed to start progress renderer", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	builder, err := pipeline.New(pipeline.Options{
		Config:      cfg,
		Logger:      slog.Default(),
		ToolVersion: version.Version,
		Progress: func(p pipeline.Progress) {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:     uiStage(p.Stage),
				Documents: p.Documents,
				Sentences: p.Sentences,
			})
		},
	})
	if err != nil {
		return nil, err
	}

	result, err := builder.Run(ctx)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Source: cfg.Dataset.Path, Err: err})
		return nil, err
	}

	renderer.Complete(ui.CompletionStats{
		Documents:   result.Documents,
		Sentences:   result.Sentences,
		Separators:  result.Separators,
		Bytes:       result.Bytes,
		SkippedRows: result.SkippedRows,
		Duration:    result.Duration,
		Warnings:    result.SkippedRows,
		Stages:      stageTimings(result),
		CorpusPath:  result.CorpusPath,
		Checksum:    result.Checksum,
	})

	return result, nil
}

// uiStage maps a pipeline stage to its display stage.
func uiStage(s pipeline.Stage) ui.Stage {
	switch s {
	case pipeline.StageLoad:
		return ui.StageLoad
	case pipeline.StageClean:
		return ui.StageClean
	case pipeline.StageSplit:
		return ui.StageSplit
	case pipeline.StageWrite:
		return ui.StageWrite
	case pipeline.StageIndex:
		return ui.StageIndex
	default:
		return ui.StageComplete
	}
}

func stageTimings(result *pipeline.Result) ui.StageTimings {
	var st ui.StageTimings
	for _, t := range result.Timings {
		switch t.Stage {
		case pipeline.StageLoad:
			st.Load = t.Duration
		case pipeline.StageClean:
			st.Clean = t.Duration
		case pipeline.StageSplit:
			st.Split = t.Duration
		case pipeline.StageWrite:
			st.Write = t.Duration
		case pipeline.StageIndex:
			st.Index = t.Duration
		}
	}
	return st
}

// runWatch builds once, then rebuilds whenever the dataset changes.
// Rebuild failures are reported and watching continues; only context
// cancellation or a watcher failure ends the loop.
func runWatch(ctx context.Context, cmd *cobra.Command, root string, opts buildOptions) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadBuildConfig(root, opts)
	if err != nil {
		return err
	}

	// TUI renderers do not survive being restarted per rebuild, so watch
	// mode always uses plain progress output.
	if _, err := runBuildOnce(ctx, cmd, cfg, true); err != nil {
		out.Errorf("Build failed: %v", err)
	}

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: cfg.WatchDebounceDuration(),
		IgnorePatterns: watchIgnorePatterns(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	watchPath, err := watchRoot(cfg)
	if err != nil {
		return err
	}

	startErr := make(chan error, 1)
	go func() {
		startErr <- w.Start(ctx, watchPath)
	}()

	out.Newline()
	out.Statusf("👀", "Watching %s (%s backend, Ctrl+C to stop)", watchPath, w.WatcherType())

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-startErr:
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("watcher stopped: %w", err)
			}
			return nil

		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}

			if hasConfigChange(batch) {
				fresh, err := loadBuildConfig(root, opts)
				if err != nil {
					out.Warningf("Configuration reload failed: %v", err)
				} else {
					cfg = fresh
					out.Status("🔁", "Configuration reloaded")
				}
			}

			out.Statusf("🔨", "Change detected (%d events), rebuilding...", len(batch))
			slog.Info("watch_rebuild", slog.Int("events", len(batch)))

			result, err := runBuildOnce(ctx, cmd, cfg, true)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				out.Errorf("Rebuild failed: %v", err)
				continue
			}
			out.Successf("Rebuilt: %d documents, %d sentences", result.Documents, result.Sentences)

		case err := <-w.Errors():
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// watchRoot picks the directory to watch: the dataset itself when it is
// a directory, its parent when it is a single file.
func watchRoot(cfg *config.Config) (string, error) {
	info, err := os.Stat(cfg.Dataset.Path)
	if err != nil {
		return "", pxerrors.New(pxerrors.ErrCodeDatasetNotFound,
			fmt.Sprintf("dataset not found: %s", cfg.Dataset.Path), err).
			WithSuggestion("Check dataset.path in .pretext.yaml or the --dataset flag.")
	}
	if info.IsDir() {
		return cfg.Dataset.Path, nil
	}
	return filepath.Dir(cfg.Dataset.Path), nil
}

// watchIgnorePatterns keeps the build's own outputs from retriggering
// the watch loop when the corpus lives inside the watched tree.
func watchIgnorePatterns(cfg *config.Config) []string {
	corpus := filepath.Base(cfg.Output.Path)
	manifest := filepath.Base(pipeline.ManifestPath(cfg))
	index := filepath.Base(pipeline.IndexBasePath(cfg))

	return []string{
		corpus,
		corpus + ".tmp",
		corpus + ".lock",
		manifest,
		manifest + "-wal",
		manifest + "-shm",
		index + ".db",
		index + ".db-wal",
		index + ".db-shm",
		index + ".bleve/",
	}
}

func hasConfigChange(batch []watcher.FileEvent) bool {
	for _, ev := range batch {
		if ev.Operation == watcher.OpConfigChange {
			return true
		}
	}
	return false
}
