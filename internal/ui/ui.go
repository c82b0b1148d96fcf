// Package ui provides terminal UI components for build progress and corpus
// statistics display.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a phase of the corpus build.
type Stage int

const (
	// StageLoad is the dataset loading stage.
	StageLoad Stage = iota
	// StageClean is the markup cleaning stage.
	StageClean
	// StageSplit is the sentence splitting stage.
	StageSplit
	// StageWrite is the corpus writing stage.
	StageWrite
	// StageIndex is the sentence index building stage.
	StageIndex
	// StageComplete indicates the build is complete.
	StageComplete
)

// stageLabels maps each stage to its progress-line verb and the short
// bracket tag the plain renderer prefixes lines with.
var stageLabels = [...]struct{ verb, tag string }{
	StageLoad:     {"Loading", "LOAD"},
	StageClean:    {"Cleaning", "CLEAN"},
	StageSplit:    {"Splitting", "SPLIT"},
	StageWrite:    {"Writing", "WRITE"},
	StageIndex:    {"Indexing", "INDEX"},
	StageComplete: {"Complete", "DONE"},
}

// String returns the human-readable stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageLabels) {
		return "Unknown"
	}
	return stageLabels[s].verb
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	if s < 0 || int(s) >= len(stageLabels) {
		return "???"
	}
	return stageLabels[s].tag
}

// ProgressEvent represents a progress update. Documents and Sentences are
// cumulative counts for the build so far. Total is the expected number of
// documents, or 0 when the dataset size is unknown up front.
type ProgressEvent struct {
	Stage     Stage
	Documents int
	Sentences int
	Total     int
	Message   string
}

// ErrorEvent represents an error during the build.
type ErrorEvent struct {
	Source string // dataset file or file:line of the offending row
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each build stage.
type StageTimings struct {
	Load  time.Duration // Dataset reading
	Clean time.Duration // Markup stripping
	Split time.Duration // Sentence segmentation
	Write time.Duration // Corpus serialization
	Index time.Duration // Sentence index building
}

// CompletionStats contains final build statistics.
type CompletionStats struct {
	Documents   int
	Sentences   int
	Separators  int
	Bytes       int64
	SkippedRows int
	Duration    time.Duration
	Errors      int
	Warnings    int
	Stages      StageTimings // Per-stage timing breakdown
	CorpusPath  string
	Checksum    string
}

// Renderer is the progress display contract the build command drives.
// Events may arrive from pipeline worker goroutines; implementations
// must be safe for concurrent use.
type Renderer interface {
	// Start begins rendering. The TUI takes over the terminal here
	// and keeps it until Stop.
	Start(ctx context.Context) error

	// UpdateProgress reports new cumulative counts for a stage.
	UpdateProgress(event ProgressEvent)

	// AddError surfaces a per-row error or warning without
	// interrupting the build.
	AddError(event ErrorEvent)

	// Complete shows the final summary once the corpus is written.
	Complete(stats CompletionStats)

	// Stop releases the terminal. Safe to call after Complete.
	Stop() error
}

// Config carries the output destination and display toggles a
// Renderer is built from.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	CorpusPath string // output path shown in the progress header
}

// ConfigOption adjusts a Config during NewConfig.
type ConfigOption func(*Config)

// WithForcePlain selects the plain renderer regardless of terminal
// detection. Wired to the --no-tui flag.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor strips ANSI color from whichever renderer runs.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithCorpusPath sets the output path shown in the progress header.
func WithCorpusPath(path string) ConfigOption {
	return func(c *Config) { c.CorpusPath = path }
}

// NewConfig builds a Config writing to output, with opts applied in
// order.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, apply := range opts {
		apply(&cfg)
	}
	return cfg
}

// NewRenderer picks a renderer for the environment: the TUI for
// interactive terminals, plain text for CI, pipes, --no-tui, or when
// TUI initialization fails.
func NewRenderer(cfg Config) Renderer {
	switch {
	case cfg.ForcePlain:
		return NewPlainRenderer(cfg)
	case !IsTTY(cfg.Output):
		return NewPlainRenderer(cfg)
	case DetectCI():
		return NewPlainRenderer(cfg)
	}

	if tui, err := NewTUIRenderer(cfg); err == nil {
		return tui
	}
	return NewPlainRenderer(cfg)
}

// IsTTY reports whether w is backed by an interactive terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether the NO_COLOR convention
// (https://no-color.org) asks for color-free output.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}

// ciEnvVars are the environment variables that identify a CI runner.
var ciEnvVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}

// DetectCI reports whether the process appears to be running under a
// CI runner.
func DetectCI() bool {
	for _, v := range ciEnvVars {
		if _, set := os.LookupEnv(v); set {
			return true
		}
	}
	return false
}
