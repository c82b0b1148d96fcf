package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pxerrors "github.com/pretextml/pretext/internal/errors"
)

// ProjectType names the kind of project a directory holds, detected
// from its marker files.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config is the full configuration tree for a pretext project.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Dataset DatasetConfig `yaml:"dataset" json:"dataset"`
	Clean   CleanConfig   `yaml:"clean" json:"clean"`
	Split   SplitConfig   `yaml:"split" json:"split"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Build   BuildConfig   `yaml:"build" json:"build"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// DatasetConfig describes where documents come from.
type DatasetConfig struct {
	// Path is the dataset file or directory. Relative paths resolve
	// against the project root.
	Path string `yaml:"path" json:"path"`

	// Format selects the loader: "auto" (default, by extension),
	// "jsonl", or "text".
	Format string `yaml:"format" json:"format"`

	// TextField is the JSONL field holding the document body.
	TextField string `yaml:"text_field" json:"text_field"`

	// MetaFields are extra JSONL fields carried into the manifest.
	MetaFields []string `yaml:"meta_fields" json:"meta_fields"`

	// MaxDocuments caps how many documents are loaded (0 = no limit).
	MaxDocuments int `yaml:"max_documents" json:"max_documents"`
}

// CleanConfig controls HTML stripping and text normalization.
type CleanConfig struct {
	// StripHTML removes markup and keeps the rendered text (default: true).
	StripHTML bool `yaml:"strip_html" json:"strip_html"`

	// DropCodeBlocks removes pre/code contents along with script and
	// style, so raw source embedded in docs never reaches the corpus
	// (default: true).
	DropCodeBlocks bool `yaml:"drop_code_blocks" json:"drop_code_blocks"`

	// CollapseWhitespace folds runs of whitespace into single spaces
	// (default: true).
	CollapseWhitespace bool `yaml:"collapse_whitespace" json:"collapse_whitespace"`

	// CacheSize is the number of cleaned documents kept in the LRU
	// cache, for datasets with repeated bodies (default: 1024).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// SplitConfig controls sentence segmentation.
type SplitConfig struct {
	// Abbreviations are extra dot-terminated tokens that never end a
	// sentence, merged with the built-in set.
	Abbreviations []string `yaml:"abbreviations" json:"abbreviations"`

	// MinSentenceChars drops fragments shorter than this after
	// trimming (default: 1, so only empty fragments are dropped).
	MinSentenceChars int `yaml:"min_sentence_chars" json:"min_sentence_chars"`
}

// OutputConfig describes the corpus destination.
type OutputConfig struct {
	// Path is the corpus file to write (default: corpus.txt).
	Path string `yaml:"path" json:"path"`

	// Manifest enables the build manifest database next to the corpus
	// (default: true).
	Manifest bool `yaml:"manifest" json:"manifest"`
}

// IndexConfig configures the sentence search index.
type IndexConfig struct {
	// Enabled builds the sentence index during `pretext build`
	// (default: true).
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Backend selects the index implementation: "sqlite" (FTS5,
	// default, concurrent access) or "bleve".
	Backend string `yaml:"backend" json:"backend"`
}

// BuildConfig configures pipeline execution.
type BuildConfig struct {
	// Workers is the number of parallel clean/split workers
	// (default: NumCPU). Serialization itself stays single-threaded.
	Workers int `yaml:"workers" json:"workers"`

	// WatchDebounce is the quiet window for --watch rebuilds
	// (default: 500ms).
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns the built-in defaults every other layer merges
// over.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Dataset: DatasetConfig{
			Path:      "",
			Format:    "auto",
			TextField: "docstring",
		},
		Clean: CleanConfig{
			StripHTML:          true,
			DropCodeBlocks:     true,
			CollapseWhitespace: true,
			CacheSize:          1024,
		},
		Split: SplitConfig{
			MinSentenceChars: 1,
		},
		Output: OutputConfig{
			Path:     "corpus.txt",
			Manifest: true,
		},
		Index: IndexConfig{
			Enabled: true,
			Backend: "sqlite",
		},
		Build: BuildConfig{
			Workers:       runtime.NumCPU(),
			WatchDebounce: "500ms",
		},
		Server: ServerConfig{
			LogLevel: "debug", // Debug by default to aid troubleshooting
		},
	}
}

// GetUserConfigPath resolves the machine-level config file per the XDG
// Base Directory convention: $XDG_CONFIG_HOME/pretext/config.yaml when
// the variable is set, ~/.config/pretext/config.yaml otherwise.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pretext", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pretext", "config.yaml")
	}
	return filepath.Join(home, ".config", "pretext", "config.yaml")
}

// GetUserConfigDir returns the directory holding the user config file.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether a user config file is present.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig reads the user config when present. A missing file is
// not an error; the caller gets nil, nil and moves on.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load assembles the configuration for a project directory, each layer
// overriding the one before:
//  1. built-in defaults
//  2. user config (~/.config/pretext/config.yaml)
//  3. project config (.pretext.yaml in project root)
//  4. PRETEXT_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .pretext.yaml or .pretext.yml.
func (c *Config) loadFromFile(dir string) error {
	// .yaml takes precedence over .yml
	yamlPath := filepath.Join(dir, ".pretext.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".pretext.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, defaults carry the day.
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return pxerrors.New(pxerrors.ErrCodeConfigParse,
			fmt.Sprintf("cannot parse %s", path), err).
			WithSuggestion("Fix the YAML syntax, or delete the file and rerun 'pretext init'.")
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
//
// Booleans that default to true (strip_html, manifest, index.enabled)
// cannot be distinguished from "not set" after unmarshal, so they only
// merge when a sibling field marks the section as present. Environment
// variables remain the unambiguous way to switch them off.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Dataset
	if other.Dataset.Path != "" {
		c.Dataset.Path = other.Dataset.Path
	}
	if other.Dataset.Format != "" {
		c.Dataset.Format = other.Dataset.Format
	}
	if other.Dataset.TextField != "" {
		c.Dataset.TextField = other.Dataset.TextField
	}
	if len(other.Dataset.MetaFields) > 0 {
		c.Dataset.MetaFields = other.Dataset.MetaFields
	}
	if other.Dataset.MaxDocuments != 0 {
		c.Dataset.MaxDocuments = other.Dataset.MaxDocuments
	}

	// Clean: CacheSize marks the section as present for the booleans.
	if other.Clean.CacheSize != 0 {
		c.Clean.StripHTML = other.Clean.StripHTML
		c.Clean.DropCodeBlocks = other.Clean.DropCodeBlocks
		c.Clean.CollapseWhitespace = other.Clean.CollapseWhitespace
		c.Clean.CacheSize = other.Clean.CacheSize
	}

	// Split
	if len(other.Split.Abbreviations) > 0 {
		// Extra abbreviations extend the built-in set, never replace it.
		c.Split.Abbreviations = append(c.Split.Abbreviations, other.Split.Abbreviations...)
	}
	if other.Split.MinSentenceChars != 0 {
		c.Split.MinSentenceChars = other.Split.MinSentenceChars
	}

	// Output: a set path marks the section as present.
	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
		c.Output.Manifest = other.Output.Manifest
	}

	// Index: a set backend marks the section as present.
	if other.Index.Backend != "" {
		c.Index.Backend = other.Index.Backend
		c.Index.Enabled = other.Index.Enabled
	}

	// Build
	if other.Build.Workers != 0 {
		c.Build.Workers = other.Build.Workers
	}
	if other.Build.WatchDebounce != "" {
		c.Build.WatchDebounce = other.Build.WatchDebounce
	}

	// Server
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies PRETEXT_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PRETEXT_DATASET"); v != "" {
		c.Dataset.Path = v
	}
	if v := os.Getenv("PRETEXT_DATASET_FORMAT"); v != "" {
		c.Dataset.Format = v
	}
	if v := os.Getenv("PRETEXT_TEXT_FIELD"); v != "" {
		c.Dataset.TextField = v
	}
	if v := os.Getenv("PRETEXT_MAX_DOCUMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Dataset.MaxDocuments = n
		}
	}
	if v := os.Getenv("PRETEXT_STRIP_HTML"); v != "" {
		c.Clean.StripHTML = parseBool(v)
	}
	if v := os.Getenv("PRETEXT_DROP_CODE_BLOCKS"); v != "" {
		c.Clean.DropCodeBlocks = parseBool(v)
	}
	if v := os.Getenv("PRETEXT_OUTPUT"); v != "" {
		c.Output.Path = v
	}
	if v := os.Getenv("PRETEXT_MANIFEST"); v != "" {
		c.Output.Manifest = parseBool(v)
	}
	if v := os.Getenv("PRETEXT_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("PRETEXT_INDEX_ENABLED"); v != "" {
		c.Index.Enabled = parseBool(v)
	}
	if v := os.Getenv("PRETEXT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Build.Workers = n
		}
	}
	if v := os.Getenv("PRETEXT_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// parseBool accepts the usual truthy spellings.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// projectMarkers maps marker files to the project type they indicate,
// in detection order: go.mod wins over package.json, which wins over
// the Python markers.
var projectMarkers = []struct {
	file  string
	ptype ProjectType
}{
	{"go.mod", ProjectTypeGo},
	{"package.json", ProjectTypeNode},
	{"pyproject.toml", ProjectTypePython},
	{"requirements.txt", ProjectTypePython},
}

// DetectProjectType classifies dir by its marker files.
func DetectProjectType(dir string) ProjectType {
	for _, m := range projectMarkers {
		if fileExists(filepath.Join(dir, m.file)) {
			return m.ptype
		}
	}
	return ProjectTypeUnknown
}

// FindProjectRoot walks up from startDir until it sees a .git
// directory or a .pretext.yaml/.yml file. Hitting the filesystem root
// without a match falls back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("get absolute path: %w", err)
	}

	for dir := absDir; ; {
		if dirExists(filepath.Join(dir, ".git")) ||
			fileExists(filepath.Join(dir, ".pretext.yaml")) ||
			fileExists(filepath.Join(dir, ".pretext.yml")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return absDir, nil
		}
		dir = parent
	}
}

// DiscoverSourceDirs lists the conventional source directories present
// under dir. The extract command uses them as default roots when none
// are given.
func DiscoverSourceDirs(dir string) []string {
	var found []string
	for _, d := range []string{"src", "lib", "pkg", "internal", "cmd", "app"} {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}
	return found
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists reports whether path names an existing directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// String returns the type name.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown reports whether detection produced a concrete type.
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// oneOf reports whether value matches any allowed name, ignoring case.
func oneOf(value string, allowed ...string) bool {
	return slices.Contains(allowed, strings.ToLower(value))
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if !oneOf(c.Dataset.Format, "auto", "jsonl", "text") {
		return fmt.Errorf("dataset.format must be 'auto', 'jsonl', or 'text', got %s", c.Dataset.Format)
	}

	if strings.TrimSpace(c.Dataset.TextField) == "" {
		return fmt.Errorf("dataset.text_field must not be empty")
	}

	if c.Dataset.MaxDocuments < 0 {
		return fmt.Errorf("dataset.max_documents must be non-negative, got %d", c.Dataset.MaxDocuments)
	}

	if c.Clean.CacheSize < 0 {
		return fmt.Errorf("clean.cache_size must be non-negative, got %d", c.Clean.CacheSize)
	}

	if c.Split.MinSentenceChars < 0 {
		return fmt.Errorf("split.min_sentence_chars must be non-negative, got %d", c.Split.MinSentenceChars)
	}

	if strings.TrimSpace(c.Output.Path) == "" {
		return fmt.Errorf("output.path must not be empty")
	}

	if !oneOf(c.Index.Backend, "sqlite", "bleve") {
		return fmt.Errorf("index.backend must be 'sqlite' or 'bleve', got %s", c.Index.Backend)
	}

	if c.Build.Workers < 1 {
		return fmt.Errorf("build.workers must be at least 1, got %d", c.Build.Workers)
	}

	if c.Build.WatchDebounce != "" {
		if _, err := time.ParseDuration(c.Build.WatchDebounce); err != nil {
			return fmt.Errorf("build.watch_debounce is not a duration: %s", c.Build.WatchDebounce)
		}
	}

	if !oneOf(c.Server.LogLevel, "debug", "info", "warn", "error") {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WatchDebounceDuration returns the parsed watch debounce window,
// falling back to the default when unset or malformed.
func (c *Config) WatchDebounceDuration() time.Duration {
	if c.Build.WatchDebounce == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.Build.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// WriteYAML marshals the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadUserConfig reads the user config when present; a missing file
// returns nil, nil.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// MergeNewDefaults adds new default fields while preserving existing
// values. Returns a list of field names that were added, so `pretext
// init` can report what an upgrade touched.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Dataset.Format == "" {
		c.Dataset.Format = defaults.Dataset.Format
		added = append(added, "dataset.format")
	}
	if c.Dataset.TextField == "" {
		c.Dataset.TextField = defaults.Dataset.TextField
		added = append(added, "dataset.text_field")
	}
	if c.Clean.CacheSize == 0 {
		c.Clean.CacheSize = defaults.Clean.CacheSize
		added = append(added, "clean.cache_size")
	}
	if c.Index.Backend == "" {
		c.Index.Backend = defaults.Index.Backend
		added = append(added, "index.backend")
	}
	if c.Build.Workers == 0 {
		c.Build.Workers = defaults.Build.Workers
		added = append(added, "build.workers")
	}
	if c.Build.WatchDebounce == "" {
		c.Build.WatchDebounce = defaults.Build.WatchDebounce
		added = append(added, "build.watch_debounce")
	}

	return added
}
