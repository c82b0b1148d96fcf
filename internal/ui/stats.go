package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// LengthBar is one bucket of the sentence length histogram, already labeled
// for display (e.g. "0-19", "200+").
type LengthBar struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// StatsInfo describes the most recent corpus build for display.
type StatsInfo struct {
	CorpusPath  string    `json:"corpus_path"`
	Documents   int       `json:"documents"`
	Sentences   int       `json:"sentences"`
	Separators  int       `json:"separators"`
	CorpusBytes int64     `json:"corpus_bytes"`
	Checksum    string    `json:"checksum,omitempty"`
	BuiltAt     time.Time `json:"built_at"`
	DurationMS  int64     `json:"duration_ms"`
	DatasetPath string    `json:"dataset_path,omitempty"`
	ToolVersion string    `json:"tool_version,omitempty"`

	// Sentence index, when one was built
	IndexBackend     string `json:"index_backend,omitempty"`
	IndexedSentences int    `json:"indexed_sentences,omitempty"`

	// Sentence length distribution, in runes per sentence
	Histogram []LengthBar `json:"length_histogram,omitempty"`
}

// StatsRenderer displays corpus build statistics.
type StatsRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewStatsRenderer creates a stats renderer.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// histogramBarWidth is the widest histogram bar, in characters.
const histogramBarWidth = 24

// Render displays build statistics to the terminal.
func (r *StatsRenderer) Render(info StatsInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Corpus Stats: "+info.CorpusPath))

	_, _ = fmt.Fprintf(r.out, "  Documents:   %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Sentences:   %d\n", info.Sentences)
	_, _ = fmt.Fprintf(r.out, "  Separators:  %d\n", info.Separators)
	_, _ = fmt.Fprintf(r.out, "  Size:        %s\n", FormatBytes(info.CorpusBytes))
	if info.Checksum != "" {
		_, _ = fmt.Fprintf(r.out, "  Checksum:    %s\n", shortChecksum(info.Checksum))
	}
	if !info.BuiltAt.IsZero() {
		built := formatTime(info.BuiltAt)
		if info.DurationMS > 0 {
			built += fmt.Sprintf(" (in %s)", time.Duration(info.DurationMS)*time.Millisecond)
		}
		_, _ = fmt.Fprintf(r.out, "  Built:       %s\n", built)
	}
	if info.DatasetPath != "" {
		_, _ = fmt.Fprintf(r.out, "  Dataset:     %s\n", info.DatasetPath)
	}
	if info.ToolVersion != "" {
		_, _ = fmt.Fprintf(r.out, "  Tool:        %s\n", info.ToolVersion)
	}
	_, _ = fmt.Fprintln(r.out)

	if info.IndexBackend != "" {
		_, _ = fmt.Fprintln(r.out, "  Index:")
		_, _ = fmt.Fprintf(r.out, "    Backend:    %s\n", info.IndexBackend)
		_, _ = fmt.Fprintf(r.out, "    Sentences:  %d\n", info.IndexedSentences)
		_, _ = fmt.Fprintln(r.out)
	}

	if len(info.Histogram) > 0 {
		_, _ = fmt.Fprintln(r.out, "  Sentence length (runes):")
		r.renderHistogram(info.Histogram)
		_, _ = fmt.Fprintln(r.out)
	}

	return nil
}

// RenderJSON outputs build statistics as JSON.
func (r *StatsRenderer) RenderJSON(info StatsInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// renderHistogram draws one scaled bar per bucket.
func (r *StatsRenderer) renderHistogram(bars []LengthBar) {
	maxCount := 0
	for _, b := range bars {
		if b.Count > maxCount {
			maxCount = b.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, b := range bars {
		width := b.Count * histogramBarWidth / maxCount
		if width == 0 && b.Count > 0 {
			width = 1
		}
		bar := strings.Repeat("█", width)
		_, _ = fmt.Fprintf(r.out, "    %-8s %s %d\n", b.Label, r.styles.Progress.Render(bar), b.Count)
	}
}

// formatTime formats a time relative to now for display.
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
