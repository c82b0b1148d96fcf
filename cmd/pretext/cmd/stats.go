package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pretextml/pretext/internal/catalog"
	"github.com/pretextml/pretext/internal/config"
	"github.com/pretextml/pretext/internal/pipeline"
	"github.com/pretextml/pretext/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics for the latest corpus build",
		Long: `Show statistics for the latest corpus build.

Reads the build manifest written next to the corpus and displays
document, sentence, and size counts, the sentence length histogram,
and a sentence-count sparkline across recent builds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output statistics as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOut bool) error {
	cleanup := setupCommandLogging()
	defer cleanup()

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	resolveConfigPaths(cfg, root)

	// OpenManifest creates an empty database, so check for one first.
	manifestPath := pipeline.ManifestPath(cfg)
	if !fileExists(manifestPath) {
		return fmt.Errorf("no manifest found. Run 'pretext build' first")
	}

	manifest, err := catalog.OpenManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { _ = manifest.Close() }()

	latest, err := manifest.LatestBuild(ctx)
	if err != nil {
		return fmt.Errorf("failed to read latest build: %w", err)
	}
	if latest == nil {
		return fmt.Errorf("manifest has no recorded builds. Run 'pretext build' first")
	}

	info := ui.StatsInfo{
		CorpusPath:  latest.CorpusPath,
		Documents:   latest.Documents,
		Sentences:   latest.Sentences,
		Separators:  latest.Separators,
		CorpusBytes: latest.Bytes,
		Checksum:    latest.Checksum,
		BuiltAt:     latest.FinishedAt,
		DurationMS:  latest.Duration.Milliseconds(),
		DatasetPath: latest.DatasetPath,
		ToolVersion: latest.ToolVersion,
	}

	buckets, err := manifest.Histogram(ctx, latest.ID)
	if err != nil {
		slog.Warn("failed to read sentence histogram", slog.String("error", err.Error()))
	} else {
		info.Histogram = lengthBars(buckets)
	}

	indexBase := pipeline.IndexBasePath(cfg)
	if indexExists(indexBase) {
		backend := catalog.DetectBackend(indexBase)
		if idx, err := catalog.NewSentenceIndex(indexBase, backend); err == nil {
			if count, err := idx.Count(); err == nil {
				info.IndexBackend = backend
				info.IndexedSentences = count
			}
			_ = idx.Close()
		}
	}

	renderer := ui.NewStatsRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOut {
		return renderer.RenderJSON(info)
	}
	if err := renderer.Render(info); err != nil {
		return err
	}

	return renderBuildHistory(ctx, cmd, manifest)
}

// lengthBars labels manifest histogram buckets for display.
func lengthBars(buckets []catalog.LengthBucket) []ui.LengthBar {
	bars := make([]ui.LengthBar, 0, len(buckets))
	for _, b := range buckets {
		label := fmt.Sprintf("%d-%d", b.Lo, b.Hi-1)
		if b.Hi == 0 {
			label = fmt.Sprintf("%d+", b.Lo)
		}
		bars = append(bars, ui.LengthBar{Label: label, Count: b.Count})
	}
	return bars
}

// renderBuildHistory draws a sentence-count sparkline over recent
// builds, oldest to newest. Skipped when there is only one build.
func renderBuildHistory(ctx context.Context, cmd *cobra.Command, manifest *catalog.Manifest) error {
	builds, err := manifest.RecentBuilds(ctx, 20)
	if err != nil || len(builds) < 2 {
		return nil
	}

	spark := ui.NewSparkline(len(builds))
	// RecentBuilds is newest-first; feed the sparkline oldest-first.
	for i := len(builds) - 1; i >= 0; i-- {
		spark.Add(float64(builds[i].Sentences))
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  History:   %s (sentences over last %d builds)\n\n",
		spark.Render(len(builds)), len(builds))
	return nil
}
