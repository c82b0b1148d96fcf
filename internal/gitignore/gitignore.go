// Package gitignore matches paths against gitignore patterns so the
// source scanner skips what git would. It covers the pattern syntax
// from https://git-scm.com/docs/gitignore: wildcards, character
// classes, negation, directory-only and anchored patterns, and **.
package gitignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Matcher holds compiled patterns. Later rules win, so negations
// re-include paths an earlier rule excluded, matching git's order.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

type rule struct {
	regex    *regexp.Regexp
	base     string // nested .gitignore directory, "" for root
	negation bool
	dirOnly  bool
	anchored bool
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddPattern adds a root-level pattern.
func (m *Matcher) AddPattern(pattern string) {
	m.AddPatternWithBase(pattern, "")
}

// AddPatternWithBase adds a pattern that only applies under base, the
// directory holding a nested .gitignore, relative to the scan root.
func (m *Matcher) AddPatternWithBase(pattern, base string) {
	r, ok := compile(pattern, base)
	if !ok {
		return
	}

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFromFile reads patterns from a .gitignore file.
func (m *Matcher) AddFromFile(path, base string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open gitignore: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPatternWithBase(scanner.Text(), base)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read gitignore: %w", err)
	}
	return nil
}

// Match reports whether path, relative to the scan root, is ignored.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ignored := false
	for _, r := range m.rules {
		if r.matches(path, isDir) {
			ignored = !r.negation
		}
	}
	return ignored
}

// compile turns one gitignore line into a rule. Blank lines and comments
// yield ok=false.
func compile(pattern, base string) (rule, bool) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return rule{}, false
	}

	r := rule{base: base}
	switch {
	case strings.HasPrefix(pattern, `\#`), strings.HasPrefix(pattern, `\!`):
		pattern = pattern[1:]
	case strings.HasPrefix(pattern, "!"):
		r.negation = true
		pattern = pattern[1:]
	}

	if p, ok := strings.CutSuffix(pattern, "/"); ok {
		r.dirOnly = true
		pattern = p
	}
	if p, ok := strings.CutPrefix(pattern, "/"); ok {
		r.anchored = true
		pattern = p
	}
	// A slash in the middle anchors too: "doc/frotz" means /doc/frotz,
	// not **/doc/frotz.
	if strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**/") && !strings.HasPrefix(pattern, "*") {
		r.anchored = true
	}

	r.regex = regexp.MustCompile("^" + patternToRegex(pattern) + "$")
	return r, true
}

func (r rule) matches(path string, isDir bool) bool {
	path, ok := r.scope(path)
	if !ok {
		return false
	}
	if r.anchored {
		return r.matchAnchored(path, isDir)
	}
	return r.matchFloating(path, isDir)
}

// scope trims the nested-gitignore base off the path. Paths outside the
// base are out of scope.
func (r rule) scope(path string) (string, bool) {
	if r.base == "" {
		return path, true
	}
	if path == r.base {
		return filepath.Base(path), true
	}
	if rest, ok := strings.CutPrefix(path, r.base+"/"); ok {
		return rest, true
	}
	return "", false
}

func (r rule) matchAnchored(path string, isDir bool) bool {
	if r.regex.MatchString(path) {
		return !r.dirOnly || isDir
	}
	if !r.dirOnly {
		return false
	}
	// A matched directory claims everything inside it, so test every
	// proper directory prefix of the path.
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' && r.regex.MatchString(path[:i]) {
			return true
		}
	}
	return false
}

func (r rule) matchFloating(path string, isDir bool) bool {
	parts := strings.Split(path, "/")

	if r.dirOnly {
		for i, part := range parts {
			if r.regex.MatchString(part) {
				// The final component must itself be a directory;
				// anything under a matched directory is in.
				return i < len(parts)-1 || isDir
			}
		}
		return false
	}

	if r.regex.MatchString(path) {
		return true
	}
	for _, part := range parts {
		if r.regex.MatchString(part) {
			return true
		}
	}
	return false
}

// patternToRegex compiles one gitignore pattern into regex source.
func patternToRegex(pattern string) string {
	var b strings.Builder

	for i := 0; i < len(pattern); {
		rest := pattern[i:]
		switch {
		case strings.HasPrefix(rest, "**/"):
			// Spans any number of leading directories.
			b.WriteString("(?:.*/)?")
			i += 3
		case strings.HasPrefix(rest, "**") && (i == 0 || pattern[i-1] == '/'):
			b.WriteString(".*")
			i += 2
		case rest[0] == '*':
			b.WriteString("[^/]*")
			i++
		case rest[0] == '?':
			b.WriteString("[^/]")
			i++
		case rest[0] == '[':
			if end := strings.IndexByte(rest, ']'); end > 0 {
				b.WriteString(rest[:end+1])
				i += end + 1
			} else {
				b.WriteString(regexp.QuoteMeta("["))
				i++
			}
		case rest[0] == '\\' && len(rest) > 1:
			b.WriteString(regexp.QuoteMeta(string(rest[1])))
			i += 2
		default:
			b.WriteString(regexp.QuoteMeta(string(rest[0])))
			i++
		}
	}

	return b.String()
}
