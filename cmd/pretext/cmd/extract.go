package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pretextml/pretext/internal/extract"
	"github.com/pretextml/pretext/internal/output"
	"github.com/pretextml/pretext/internal/ui"
)

func newExtractCmd() *cobra.Command {
	var (
		outPath     string
		languages   []string
		excludes    []string
		noGitignore bool
		maxFileSize int64
	)

	cmd := &cobra.Command{
		Use:   "extract [path]",
		Short: "Harvest docstrings from a source tree into a JSONL dataset",
		Long: `Harvest docstrings from a source tree into a JSONL dataset.

Source files are parsed with tree-sitter and each documented declaration
becomes one JSONL record with a "docstring" field, ready for
'pretext build'. Go, Python, JavaScript, and TypeScript are supported.`,
		Example: `  # Harvest the current directory into dataset.jsonl
  pretext extract

  # Harvest a repository, Python and Go only
  pretext extract ~/src/myrepo --language python --language go

  # Skip vendored trees
  pretext extract . --exclude vendor --exclude node_modules`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cleanup := setupCommandLogging()
			defer cleanup()

			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			out := output.New(cmd.OutOrStdout())
			isTTY := ui.IsTTY(cmd.OutOrStdout())

			opts := extract.Options{
				Root:             root,
				OutputPath:       outPath,
				Languages:        languages,
				ExcludePatterns:  excludes,
				RespectGitignore: !noGitignore,
				MaxFileSize:      maxFileSize,
			}
			if isTTY {
				opts.Progress = func(files, entries int) {
					fmt.Fprintf(cmd.OutOrStdout(), "\rHarvesting... %d files, %d entries", files, entries)
				}
			}

			result, err := extract.Run(ctx, opts)
			if isTTY {
				fmt.Fprint(cmd.OutOrStdout(), "\r\033[K")
			}
			if err != nil {
				return err
			}

			out.Successf("Harvested %d entries from %d files (%d skipped) in %s",
				result.Entries, result.Files, result.Skipped, result.Duration.Round(time.Millisecond))
			out.Statusf("📄", "Dataset written to %s", outPath)
			out.Newline()
			out.Status("", "Next: pretext build --dataset "+outPath)

			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "dataset.jsonl", "JSONL output file")
	cmd.Flags().StringSliceVar(&languages, "language", nil, "Languages to harvest (go, python, javascript, typescript)")
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Glob patterns to exclude")
	cmd.Flags().BoolVar(&noGitignore, "no-gitignore", false, "Do not honor .gitignore files")
	cmd.Flags().Int64Var(&maxFileSize, "max-file-size", 0, "Skip source files larger than this many bytes (0 = default)")

	return cmd
}
