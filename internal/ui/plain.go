package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer prints line-oriented progress, suitable for pipes, CI
// logs, and --plain runs.
type PlainRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

var _ Renderer = (*PlainRenderer)(nil)

// NewPlainRenderer builds a renderer writing to the configured output.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start is a no-op; plain output needs no terminal setup.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress prints one line per event, skipping events with
// nothing worth printing.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	line := progressLine(event)
	if line == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, line)
}

// progressLine formats one event as a text line, empty when the event
// carries nothing worth printing.
func progressLine(event ProgressEvent) string {
	var counts string
	switch {
	case event.Total > 0:
		counts = fmt.Sprintf("%d/%d documents, %d sentences", event.Documents, event.Total, event.Sentences)
	case event.Documents > 0 || event.Sentences > 0:
		counts = fmt.Sprintf("%d documents, %d sentences", event.Documents, event.Sentences)
	case event.Message != "":
		return fmt.Sprintf("[%s] %s", event.Stage.Icon(), event.Message)
	default:
		return ""
	}

	if event.Message != "" {
		counts += " - " + event.Message
	}
	return fmt.Sprintf("[%s] %s", event.Stage.Icon(), counts)
}

// AddError prints the error immediately with a severity prefix.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Source != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Source, event.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete prints the summary block: totals, then the stage breakdown
// and corpus location.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("Complete: %d documents, %d sentences written in %s",
		stats.Documents, stats.Sentences, roundTenth(stats.Duration))
	if stats.Errors > 0 || stats.Warnings > 0 {
		line += fmt.Sprintf(" (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out, line)

	if stats.SkippedRows > 0 {
		_, _ = fmt.Fprintf(r.out, "Skipped: %d malformed rows\n", stats.SkippedRows)
	}

	r.writeBreakdown(stats)
	r.writeCorpusLine(stats)
}

// writeBreakdown prints per-stage wall times when the pipeline recorded any.
func (r *PlainRenderer) writeBreakdown(stats CompletionStats) {
	if stats.Stages.Load == 0 && stats.Stages.Write == 0 {
		return
	}

	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
	_, _ = fmt.Fprintf(r.out, "  Load:  %s (dataset read)\n", roundTenth(stats.Stages.Load))
	_, _ = fmt.Fprintf(r.out, "  Clean: %s (markup stripped)\n", roundTenth(stats.Stages.Clean))
	_, _ = fmt.Fprintf(r.out, "  Split: %s (sentences segmented)\n", roundTenth(stats.Stages.Split))

	if stats.Stages.Write > 0 && stats.Sentences > 0 {
		rate := float64(stats.Sentences) / stats.Stages.Write.Seconds()
		_, _ = fmt.Fprintf(r.out, "  Write: %s (%d sentences @ %.1f/sec)\n",
			roundTenth(stats.Stages.Write), stats.Sentences, rate)
	} else {
		_, _ = fmt.Fprintf(r.out, "  Write: %s\n", roundTenth(stats.Stages.Write))
	}

	if stats.Stages.Index > 0 {
		_, _ = fmt.Fprintf(r.out, "  Index: %s (sentence index)\n", roundTenth(stats.Stages.Index))
	}
}

// writeCorpusLine prints where the corpus landed, with size and digest.
func (r *PlainRenderer) writeCorpusLine(stats CompletionStats) {
	if stats.CorpusPath == "" {
		return
	}

	detail := FormatBytes(stats.Bytes)
	if stats.Checksum != "" {
		detail += ", sha256 " + shortChecksum(stats.Checksum)
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "Corpus: %s (%s)\n", stats.CorpusPath, detail)
}

// Stop is a no-op.
func (r *PlainRenderer) Stop() error {
	return nil
}

// roundTenth trims a duration to tenths of a second for display.
func roundTenth(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}

// shortChecksum abbreviates a hex digest for display.
func shortChecksum(sum string) string {
	if len(sum) <= 12 {
		return sum
	}
	return sum[:12] + "…"
}
