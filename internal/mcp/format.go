package mcp

import (
	"fmt"
	"strings"

	"github.com/pretextml/pretext/internal/catalog"
)

// FormatSearchHits formats search hits as markdown for clients that
// render tool output as text.
func FormatSearchHits(query string, hits []catalog.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No corpus sentences matched %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Corpus matches for %q\n\n", query)
	fmt.Fprintf(&sb, "Found %d hit", len(hits))
	if len(hits) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, h := range hits {
		fmt.Fprintf(&sb, "### %d. document %d, line %d (score: %.2f)\n\n",
			i+1, h.Ordinal, h.Line, h.Score)
		fmt.Fprintf(&sb, "> %s\n\n", h.Text)
	}

	return sb.String()
}

// FormatStats formats corpus statistics as markdown.
func FormatStats(out *StatsOutput) string {
	var sb strings.Builder
	sb.WriteString("## Corpus statistics\n\n")
	fmt.Fprintf(&sb, "**Corpus:** %s\n", out.CorpusPath)

	if out.LatestBuild == nil {
		sb.WriteString("\nNo builds recorded yet. Run `pretext build` first.\n")
		return sb.String()
	}

	b := out.LatestBuild
	fmt.Fprintf(&sb, "**Built:** %s (pretext %s)\n\n", b.FinishedAt, b.ToolVersion)
	fmt.Fprintf(&sb, "| Documents | Sentences | Separators | Bytes |\n")
	fmt.Fprintf(&sb, "|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d |\n\n", b.Documents, b.Sentences, b.Separators, b.Bytes)
	fmt.Fprintf(&sb, "**Checksum:** `%s`\n", b.Checksum)

	if out.IndexBackend != "" {
		fmt.Fprintf(&sb, "**Index:** %s, %d sentences\n", out.IndexBackend, out.IndexedSentences)
	}

	return sb.String()
}

// clampLimit bounds a requested limit to [lo, hi], substituting the
// default for non-positive values.
func clampLimit(limit, defaultVal, lo, hi int) int {
	if limit <= 0 {
		return defaultVal
	}
	return min(max(limit, lo), hi)
}
