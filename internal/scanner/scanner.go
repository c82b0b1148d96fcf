// Package scanner discovers source files worth harvesting docstrings
// from. It walks a project tree and streams matches over a channel,
// honoring exclude patterns and .gitignore rules and skipping binary,
// generated, oversized, and sensitive files.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pretextml/pretext/internal/gitignore"
)

// DefaultMaxFileSize caps how large a source file may be (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// ignoreCacheSize bounds the per-directory gitignore matcher cache.
const ignoreCacheSize = 256

// FileInfo describes one discovered source file.
type FileInfo struct {
	Path     string // relative to the scan root
	AbsPath  string
	Size     int64
	ModTime  time.Time
	Language string // go, python, javascript, typescript
}

// Result is one scanner emission: a file or a traversal error.
type Result struct {
	File *FileInfo
	Err  error
}

// Options configures a scan.
type Options struct {
	// Root is the directory to walk. Empty means the current
	// directory.
	Root string

	// Languages restricts results to these languages. Empty means
	// every language the scanner knows.
	Languages []string

	// ExcludePatterns are extra exclusions on top of the defaults.
	ExcludePatterns []string

	// RespectGitignore applies .gitignore files found in the tree.
	RespectGitignore bool

	// MaxFileSize caps file size in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// FollowSymlinks walks through symbolic links.
	FollowSymlinks bool
}

// Scanner walks source trees. Parsed gitignore matchers are cached
// per directory so deep trees do not reparse the same file.
type Scanner struct {
	ignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu     sync.RWMutex
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](ignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gitignore cache: %w", err)
	}
	return &Scanner{ignoreCache: cache}, nil
}

// Scan streams discovered files until the tree is exhausted or ctx is
// canceled. The channel closes when the walk finishes.
func (s *Scanner) Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", absRoot)
	}

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	wanted := make(map[string]bool, len(opts.Languages))
	for _, l := range opts.Languages {
		wanted[strings.ToLower(l)] = true
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, wanted, maxSize, results)
	}()
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts Options, wanted map[string]bool, maxSize int64, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// Unreadable entries are skipped, not fatal
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if s.excludedDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if s.excludedFile(relPath, absRoot, opts) {
			return nil
		}

		language := DetectLanguage(relPath)
		if language == "" {
			return nil
		}
		if len(wanted) > 0 && !wanted[language] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}
		if isBinary(path) || isGenerated(path) {
			return nil
		}

		file := &FileInfo{
			Path:     relPath,
			AbsPath:  path,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Language: language,
		}
		select {
		case results <- Result{File: file}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Err: err}:
		case <-ctx.Done():
		}
	}
}

func (s *Scanner) excludedDir(relPath string, opts Options) bool {
	for _, p := range defaultExcludeDirs {
		if matchDirPattern(relPath, p) {
			return true
		}
	}
	for _, p := range opts.ExcludePatterns {
		if matchDirPattern(relPath, p) {
			return true
		}
	}
	return false
}

func (s *Scanner) excludedFile(relPath, absRoot string, opts Options) bool {
	base := filepath.Base(relPath)

	for _, p := range sensitivePatterns {
		if matchFilePattern(base, relPath, p) {
			return true
		}
	}
	for _, p := range defaultExcludeFiles {
		if matchFilePattern(base, relPath, p) {
			return true
		}
	}
	for _, p := range opts.ExcludePatterns {
		if matchFilePattern(base, relPath, p) {
			return true
		}
	}
	if opts.RespectGitignore && s.isIgnored(relPath, absRoot) {
		return true
	}
	return false
}

// matchDirPattern matches a directory path against an exclude pattern.
func matchDirPattern(relPath, pattern string) bool {
	// **/name/** and **/name exclude the component anywhere
	if strings.HasPrefix(pattern, "**/") {
		name := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "/**")
		for _, part := range strings.Split(relPath, "/") {
			if part == name {
				return true
			}
		}
		return false
	}
	// name/** excludes the subtree rooted at name
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return relPath == prefix || strings.HasPrefix(relPath, prefix+"/")
	}
	return relPath == pattern || strings.HasPrefix(relPath, pattern+"/")
}

// matchFilePattern matches a file against an exclude pattern.
func matchFilePattern(base, relPath, pattern string) bool {
	// subtree pattern
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return strings.HasPrefix(relPath, prefix+"/")
	}
	// **/*.ext matches by extension anywhere
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			return strings.HasSuffix(base, strings.TrimPrefix(suffix, "*"))
		}
		for _, part := range strings.Split(relPath, "/") {
			if part == suffix {
				return true
			}
		}
		return false
	}
	// *middle* matches a substring of the name, case-insensitive
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1 {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(base), strings.ToLower(middle))
	}
	// globs apply to the base name; with a slash, to the whole path
	if strings.ContainsAny(pattern, "*?[") {
		if strings.Contains(pattern, "/") {
			if ok, err := filepath.Match(pattern, relPath); err == nil && ok {
				return true
			}
			return false
		}
		ok, err := filepath.Match(pattern, base)
		return err == nil && ok
	}
	return base == pattern
}

// isIgnored walks the ancestor chain collecting .gitignore matchers
// and asks each whether the path is ignored.
func (s *Scanner) isIgnored(relPath, absRoot string) bool {
	if m := s.matcherFor(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	dir := filepath.Dir(relPath)
	if dir == "." {
		return false
	}
	currentDir := absRoot
	currentBase := ""
	for _, part := range strings.Split(dir, "/") {
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = currentBase + "/" + part
		}
		if m := s.matcherFor(currentDir, currentBase); m != nil && m.Match(relPath, false) {
			return true
		}
	}
	return false
}

// matcherFor returns the cached matcher for dir, parsing .gitignore
// on first use. Nil when the directory has no .gitignore.
func (s *Scanner) matcherFor(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	m, ok := s.ignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return m
	}

	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m = gitignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil
	}

	s.cacheMu.Lock()
	s.ignoreCache.Add(dir, m)
	s.cacheMu.Unlock()
	return m
}

// isBinary sniffs for a NUL byte in the first 512 bytes.
func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}

// isGenerated looks for generated-file markers in the first 1KB.
// Machine-written docstrings would only pollute a training corpus.
func isGenerated(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1024)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	head := string(buf[:n])

	for _, marker := range generatedMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}

var generatedMarkers = []string{
	"Code generated",
	"DO NOT EDIT",
	"Generated by",
	"@generated",
	"AUTO-GENERATED",
}

var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.venv/**",
	"**/venv/**",
	"**/.tox/**",
}

var defaultExcludeFiles = []string{
	"**/*.min.js",
}

// sensitivePatterns are never scanned; their contents must not end up
// in a corpus.
var sensitivePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*credential*",
	"*secret*",
	"*password*",
	".netrc",
	".npmrc",
	"id_rsa*",
	"id_ed25519*",
}
