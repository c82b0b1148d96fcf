// Package cmd provides the CLI commands for pretext.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	pxerrors "github.com/pretextml/pretext/internal/errors"
	"github.com/pretextml/pretext/internal/logging"
	"github.com/pretextml/pretext/internal/profiling"
	"github.com/pretextml/pretext/pkg/version"
)

// Profiling flags
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	cpuCleanup   func()
	traceCleanup func()
)

// Logging flags
var (
	debugMode      bool
	logLevel       string
	logFilePath    string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the pretext CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pretext",
		Short: "Build BERT pre-training corpora from documentation datasets",
		Long: `Pretext turns a documentation dataset into a pre-training corpus for
BERT-style language models.

It reads documents (JSONL or plain text), strips markup, splits each
document into sentences, and writes a single corpus file: one sentence
per line, a blank line between documents, everything escaped down to
printable ASCII so the file survives any tokenizer pipeline.

Run 'pretext init' in a project directory to get started, then
'pretext build' to produce the corpus.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("pretext version {{.Version}}\n")

	// Logging flags
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.pretext/logs/")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&logFilePath, "log-file", "", "Log file path (default ~/.pretext/logs/pretext.log)")

	// Profiling flags
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	// Setup profiling and logging hooks
	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	// Add subcommands
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// commandLogConfig builds the file-only logging config for CLI commands,
// honoring the persistent logging flags. Commands write their own output
// to stdout, so logs never go to the terminal.
func commandLogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg.Level = "debug"
	}
	if logLevel != "" {
		cfg.Level = logLevel
	}
	if logFilePath != "" {
		cfg.FilePath = logFilePath
	}
	return cfg
}

// setupCommandLogging initializes file-only logging for a CLI command and
// installs it as the slog default. Logging failures are not fatal; the
// command runs without file logs.
func setupCommandLogging() func() {
	logger, cleanup, err := logging.Setup(commandLogConfig())
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// startProfilingAndLogging starts CPU/trace profiling and debug logging if flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	// Start debug logging if enabled
	if debugMode {
		logger, cleanup, err := logging.Setup(commandLogConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	// Start CPU profiling
	if profileCPU != "" {
		cpuCleanup, err = profiling.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}

	// Start trace profiling
	if profileTrace != "" {
		traceCleanup, err = profiling.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling and logging, writes memory profile if requested.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	// Stop CPU profiling
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}

	// Stop tracing
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	// Write memory profile if requested
	if profileMem != "" {
		if err := profiling.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}

	// Stop debug logging
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command. Structured errors print with their code
// and hint; anything else falls back to a plain message.
func Execute() error {
	err := NewRootCmd().Execute()
	if err == nil {
		return nil
	}

	var pe *pxerrors.PretextError
	if errors.As(err, &pe) {
		fmt.Fprint(os.Stderr, pxerrors.FormatForCLI(pe))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
