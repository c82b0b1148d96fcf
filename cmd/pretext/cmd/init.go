package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pretextml/pretext/configs"
	"github.com/pretextml/pretext/internal/config"
	"github.com/pretextml/pretext/internal/output"
	"github.com/pretextml/pretext/pkg/version"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize pretext for a project",
		Long: `Initialize pretext for the current project.

This command:
1. Generates a .pretext.yaml configuration template
2. Adds the build outputs to .gitignore

The template ships with commented examples for every option; defaults
work out of the box once dataset.path is set.`,
		Example: `  # Initialize in the current project
  pretext init

  # Overwrite an existing .pretext.yaml
  pretext init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	cleanup := setupCommandLogging()
	defer cleanup()

	out := output.New(cmd.OutOrStdout())

	out.Statusf("🚀", "Pretext %s - Initializing...", version.Version)
	out.Newline()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	out.Statusf("📁", "Project: %s", absRoot)
	out.Newline()

	if err := generatePretextYAML(out, absRoot, force); err != nil {
		return err
	}

	// Read the config back so custom output paths get the right
	// .gitignore entries.
	cfg, err := config.Load(absRoot)
	if err != nil {
		cfg = config.NewConfig()
	}
	resolveConfigPaths(cfg, absRoot)

	added, err := ensureGitignore(absRoot, gitignoreEntries(absRoot, cfg))
	if err != nil {
		out.Warningf("Could not update .gitignore: %v", err)
	} else if added {
		out.Status("📝", "Added build outputs to .gitignore")
	}

	out.Newline()
	out.Success("Initialization complete!")
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Set dataset.path in .pretext.yaml (or run 'pretext extract')")
	out.Status("", "  2. Run 'pretext build' to write the corpus")
	out.Status("", "  3. Run 'pretext verify' to check the output")

	if !config.UserConfigExists() {
		out.Newline()
		out.Status("💡", "For machine-specific settings (workers, log level):")
		out.Status("", "   Run 'pretext config init' to create user config")
	}

	return nil
}

// generatePretextYAML creates a template .pretext.yaml.
//
// The template is embedded at build time from
// configs/project-config.example.yaml (see configs/embed.go), so it is
// available in binary distributions. Both .pretext.yaml and
// .pretext.yml are recognized; an existing file is preserved unless
// --force is given.
func generatePretextYAML(out *output.Writer, projectRoot string, force bool) error {
	yamlPath := filepath.Join(projectRoot, ".pretext.yaml")

	if !force {
		if _, err := os.Stat(yamlPath); err == nil {
			out.Status("ℹ️ ", "Existing .pretext.yaml preserved (use --force to overwrite)")
			return nil
		}

		ymlPath := filepath.Join(projectRoot, ".pretext.yml")
		if _, err := os.Stat(ymlPath); err == nil {
			out.Status("ℹ️ ", "Existing .pretext.yml found, skipping template")
			return nil
		}
	}

	if err := os.WriteFile(yamlPath, []byte(configs.ProjectConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write .pretext.yaml: %w", err)
	}

	out.Statusf("📝", "Created .pretext.yaml (project configuration)")
	return nil
}

// gitignoreEntries returns the patterns that keep build outputs out of
// version control. An output subdirectory is ignored wholesale; outputs
// at the project root ignore the individual artifacts.
func gitignoreEntries(root string, cfg *config.Config) []string {
	rel, err := filepath.Rel(root, cfg.Output.Path)
	if err == nil && !strings.HasPrefix(rel, "..") {
		if dir := filepath.Dir(rel); dir != "." {
			top := strings.Split(filepath.ToSlash(dir), "/")[0]
			return []string{top + "/"}
		}
	}

	base := filepath.Base(cfg.Output.Path)
	return []string{base, base + ".*", "manifest.db*"}
}

// hasGitignoreEntry checks if a pattern is already in .gitignore.
// Handles variations: pattern, pattern/, /pattern, /pattern/
func hasGitignoreEntry(content, pattern string) bool {
	trimmed := strings.TrimSuffix(pattern, "/")
	variants := []string{
		trimmed,
		trimmed + "/",
		"/" + trimmed,
		"/" + trimmed + "/",
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, v := range variants {
			if line == v {
				return true
			}
		}
	}
	return false
}

// ensureGitignore adds the given patterns to .gitignore if not present.
// Returns (true, nil) if anything was added, (false, nil) if all
// patterns were already present.
func ensureGitignore(projectRoot string, patterns []string) (bool, error) {
	gitignorePath := filepath.Join(projectRoot, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	var missing []string
	for _, p := range patterns {
		if !hasGitignoreEntry(string(content), p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	// Match the existing line ending, defaulting to LF
	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}

	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(lineEnding)...)
	}

	var entry strings.Builder
	if len(content) > 0 {
		entry.WriteString(lineEnding)
	}
	entry.WriteString("# Pretext build outputs (auto-generated)")
	entry.WriteString(lineEnding)
	for _, p := range missing {
		entry.WriteString(p)
		entry.WriteString(lineEnding)
	}

	content = append(content, []byte(entry.String())...)

	if err := os.WriteFile(gitignorePath, content, 0644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}

	return true, nil
}
