package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pretextml/pretext/internal/catalog"
	"github.com/pretextml/pretext/internal/config"
	pxerrors "github.com/pretextml/pretext/internal/errors"
	"github.com/pretextml/pretext/internal/output"
	"github.com/pretextml/pretext/internal/pipeline"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	jsonOut bool
	backend string // "", "sqlite", "bleve"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the corpus sentence index",
		Long: `Search the corpus sentence index.

Matches full-text against every sentence written in the last build and
prints each hit with its corpus line number and document ordinal. The
index backend (SQLite FTS5 or Bleve) is detected from the files on
disk.

Examples:
  pretext search "tokenizer"
  pretext search "masked language model" --limit 5
  pretext search "vocab size" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Index backend: sqlite, bleve (default: detect)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cleanup := setupCommandLogging()
	defer cleanup()

	if strings.TrimSpace(query) == "" {
		return pxerrors.New(pxerrors.ErrCodeQueryEmpty, "search query is empty", nil).
			WithSuggestion("Pass one or more search terms, e.g. 'pretext search tokenizer'.")
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	out := output.New(cmd.OutOrStdout())

	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.NewConfig()
	}
	resolveConfigPaths(cfg, root)

	indexBase := pipeline.IndexBasePath(cfg)
	if !indexExists(indexBase) {
		return fmt.Errorf("no sentence index found. Run 'pretext build' first")
	}

	backend := opts.backend
	if backend == "" {
		backend = catalog.DetectBackend(indexBase)
	}

	idx, err := catalog.NewSentenceIndex(indexBase, backend)
	if err != nil {
		return fmt.Errorf("failed to open sentence index: %w", err)
	}
	defer func() { _ = idx.Close() }()

	hits, err := idx.Search(ctx, query, opts.limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_complete", slog.String("backend", backend), slog.Int("results", len(hits)))

	if len(hits) == 0 {
		out.Status("", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	if opts.jsonOut {
		return formatHitsJSON(cmd, hits)
	}
	return formatHitsText(out, query, hits)
}

// indexExists reports whether either index backend has data on disk.
// DetectBackend alone cannot answer this: it returns the default
// backend even when nothing was ever built.
func indexExists(basePath string) bool {
	if info, err := os.Stat(basePath + ".db"); err == nil && !info.IsDir() {
		return true
	}
	if info, err := os.Stat(basePath + ".bleve"); err == nil && info.IsDir() {
		return true
	}
	return false
}

// formatHitsText outputs results in human-readable format.
func formatHitsText(out *output.Writer, query string, hits []catalog.Hit) error {
	out.Statusf("🔍", "Found %d results for %q:", len(hits), query)
	out.Newline()

	for i, h := range hits {
		// Format: 1. line 42, document 3 (score: 0.89)
		out.Statusf("", "%d. line %d, document %d (score: %.2f)", i+1, h.Line, h.Ordinal, h.Score)
		out.Status("", "   "+truncateSentence(h.Text, 160))
		out.Newline()
	}

	return nil
}

// formatHitsJSON outputs results in JSON format.
func formatHitsJSON(cmd *cobra.Command, hits []catalog.Hit) error {
	type jsonHit struct {
		Line     int     `json:"line"`
		Document int     `json:"document"`
		Score    float64 `json:"score"`
		Text     string  `json:"text"`
	}

	results := make([]jsonHit, 0, len(hits))
	for _, h := range hits {
		results = append(results, jsonHit{
			Line:     h.Line,
			Document: h.Ordinal,
			Score:    h.Score,
			Text:     h.Text,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// truncateSentence shortens long sentences for terminal display.
// Indexed text is unescaped, so cut at rune boundaries.
func truncateSentence(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
