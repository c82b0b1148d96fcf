// Package verify checks a built corpus against its format guarantees and
// its manifest, and provides the pre-build environment checks.
//
// Corpus checks validate:
//   - The file opens and reads
//   - Every byte is printable ASCII or a line break
//   - Every line is in canonical escaped form
//   - The file ends with a newline
//   - Document, sentence, and separator counts match the manifest
//   - The SHA-256 checksum matches the manifest
//
// Use the Verifier type to run all checks:
//
//	v := verify.New()
//	results := v.RunAll(ctx, corpusPath, manifestPath)
//	if verify.HasCriticalFailures(results) {
//	    // corpus is not trustworthy
//	}
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CheckStatus represents the result of a verification check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Verifier runs corpus verification checks.
type Verifier struct {
	verbose bool
	output  io.Writer
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(v *Verifier) {
		v.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(v *Verifier) {
		v.output = w
	}
}

// New creates a new Verifier with the given options.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// RunAll runs every corpus check and returns the results. manifestPath may
// be empty when no manifest exists; the manifest comparisons then report a
// warning instead of failing.
func (v *Verifier) RunAll(ctx context.Context, corpusPath, manifestPath string) []CheckResult {
	var results []CheckResult

	rep, readable := v.checkReadable(corpusPath)
	results = append(results, readable)
	if rep == nil {
		// Nothing else can run without the file
		return results
	}

	results = append(results, v.checkFinalNewline(rep))
	results = append(results, v.checkASCII(rep))
	results = append(results, v.checkCanonicalEscapes(rep))
	results = append(results, v.checkEmptyDocuments(rep))
	results = append(results, v.checkTrailingSeparator(rep))
	results = append(results, v.checkManifest(ctx, rep, manifestPath)...)

	return results
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ok_with_warnings"
	}
	return "ok"
}

// PrintResults prints check results to the configured output.
func (v *Verifier) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(v.output, "Pretext Corpus Check")
	_, _ = fmt.Fprintln(v.output, "====================")
	_, _ = fmt.Fprintln(v.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(v.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if v.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(v.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(v.output)
	_, _ = fmt.Fprintf(v.output, "Status: %s\n", strings.ToUpper(SummaryStatus(results)))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status == StatusWarn {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(v.output)
		_, _ = fmt.Fprintf(v.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(v.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(v.output)
		_, _ = fmt.Fprintf(v.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(v.output, "  - %s\n", w)
		}
	}
}
