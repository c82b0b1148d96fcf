package cmd

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pretextml/pretext/internal/config"
	"github.com/pretextml/pretext/internal/pipeline"
	"github.com/pretextml/pretext/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "verify [corpus]",
		Short: "Check a corpus file against the output contract",
		Long: `Check a corpus file against the output contract.

Checks:
  - File is readable and ends with a newline
  - Every byte is printable ASCII
  - Lines survive an unescape/escape round trip
  - No empty documents or trailing separator
  - Counts and checksum match the latest manifest build

Without an argument the configured output path is checked.

Use --verbose for per-check details.
Use --json for machine-readable output.`,
		Example: `  # Verify the configured corpus
  pretext verify

  # Verify an explicit file
  pretext verify ./corpus.txt

  # JSON output for scripting
  pretext verify --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show per-check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	corpusPath := cfg.Output.Path
	if len(args) > 0 {
		corpusPath = absPath(args[0])
	}
	manifestPath := pipeline.ManifestPath(cfg)

	verifier := verify.New(
		verify.WithVerbose(verbose),
		verify.WithOutput(cmd.OutOrStdout()),
	)

	results := verifier.RunAll(ctx, corpusPath, manifestPath)

	if jsonOutput {
		if err := printVerifyJSON(cmd, results); err != nil {
			return err
		}
	} else {
		verifier.PrintResults(results)
	}

	if verify.HasCriticalFailures(results) {
		return &verifyError{message: "corpus verification failed"}
	}

	return nil
}

// verifyError is a custom error for verify command failures.
type verifyError struct {
	message string
}

func (e *verifyError) Error() string {
	return e.message
}

// verifyJSONOutput is the structure for JSON output.
type verifyJSONOutput struct {
	Status   string            `json:"status"`
	Checks   []verifyJSONCheck `json:"checks"`
	Warnings []string          `json:"warnings,omitempty"`
	Errors   []string          `json:"errors,omitempty"`
}

// verifyJSONCheck is a single check result for JSON output.
type verifyJSONCheck struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
	Details  string `json:"details,omitempty"`
}

func printVerifyJSON(cmd *cobra.Command, results []verify.CheckResult) error {
	out := verifyJSONOutput{
		Status: verify.SummaryStatus(results),
		Checks: make([]verifyJSONCheck, len(results)),
	}

	for i, r := range results {
		out.Checks[i] = verifyJSONCheck{
			Name:     r.Name,
			Status:   statusToString(r.Status),
			Message:  r.Message,
			Required: r.Required,
			Details:  r.Details,
		}

		if r.IsCritical() {
			out.Errors = append(out.Errors, r.Name+": "+r.Message)
		} else if r.Status == verify.StatusWarn {
			out.Warnings = append(out.Warnings, r.Name+": "+r.Message)
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func statusToString(s verify.CheckStatus) string {
	switch s {
	case verify.StatusPass:
		return "pass"
	case verify.StatusWarn:
		return "warn"
	case verify.StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}
