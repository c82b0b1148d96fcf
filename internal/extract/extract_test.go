package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func harvest(t *testing.T, source, relPath, language string) []Entry {
	t.Helper()
	ex := New()
	defer ex.Close()

	entries, err := ex.ExtractSource(context.Background(), []byte(source), relPath, language)
	require.NoError(t, err)
	return entries
}

func findEntry(t *testing.T, entries []Entry, name string) Entry {
	t.Helper()
	for _, e := range entries {
		if e.FuncName == name {
			return e
		}
	}
	t.Fatalf("no entry named %q in %v", name, entries)
	return Entry{}
}

func hasEntry(entries []Entry, name string) bool {
	for _, e := range entries {
		if e.FuncName == name {
			return true
		}
	}
	return false
}

func TestExtract_GoDeclarations(t *testing.T) {
	// Given Go source with documented and bare declarations
	source := `package math

// Add returns the sum of a and b.
// It never overflows on the inputs tests use.
func Add(a, b int) int {
	return a + b
}

func undocumented() {}

// Point is a 2D coordinate.
type Point struct {
	X, Y int
}

// Scale multiplies both coordinates in place.
func (p *Point) Scale(f int) {
	p.X *= f
	p.Y *= f
}
`

	// When harvested
	entries := harvest(t, source, "lib/math.go", "go")

	// Then documented declarations come back with folded comments
	require.Len(t, entries, 3)

	add := findEntry(t, entries, "Add")
	assert.Equal(t, "Add returns the sum of a and b. It never overflows on the inputs tests use.", add.Docstring)
	assert.Equal(t, "lib/math.go", add.Path)
	assert.Equal(t, "go", add.Language)
	assert.Equal(t, 5, add.Line)

	assert.Equal(t, "Point is a 2D coordinate.", findEntry(t, entries, "Point").Docstring)
	assert.Equal(t, "Scale multiplies both coordinates in place.", findEntry(t, entries, "Scale").Docstring)
	assert.False(t, hasEntry(entries, "undocumented"))
}

func TestExtract_GoBlockComment(t *testing.T) {
	source := `package x

/*
Run starts the loop.
It blocks until canceled.
*/
func Run() {}
`

	entries := harvest(t, source, "x.go", "go")

	require.Len(t, entries, 1)
	assert.Equal(t, "Run starts the loop. It blocks until canceled.", entries[0].Docstring)
}

func TestExtract_BlankLineBreaksPairing(t *testing.T) {
	// Given a comment separated from the function by a blank line
	source := `package x

// Orphaned remark about nothing in particular.

func Lonely() {}
`

	// When harvested
	entries := harvest(t, source, "x.go", "go")

	// Then the function stays undocumented
	assert.Empty(t, entries)
}

func TestExtract_TrailingCommentNotADoc(t *testing.T) {
	// Given a trailing comment on the preceding statement's line
	source := `package x

var state = 1 // tracks the loop state
func Next() {}
`

	// When harvested
	entries := harvest(t, source, "x.go", "go")

	// Then the comment does not attach to the function
	assert.False(t, hasEntry(entries, "Next"))
}

func TestExtract_GoDirectivesDropped(t *testing.T) {
	source := `package x

//go:generate stringer -type=Kind
// Kind tags a node.
type Kind int
`

	entries := harvest(t, source, "x.go", "go")

	require.Len(t, entries, 1)
	assert.Equal(t, "Kind tags a node.", entries[0].Docstring)
}

func TestExtract_PythonDocstrings(t *testing.T) {
	// Given Python source with function, class, and method docstrings
	source := `"""Module docstring stays out of the harvest."""


def fetch(url):
    """Fetch a URL.

    Retries on transient failures.
    """
    return url


class Client:
    """HTTP client wrapper."""

    def get(self, url):
        """Issue a GET request."""
        return url

    def _bare(self):
        pass
`

	// When harvested
	entries := harvest(t, source, "lib/http.py", "python")

	// Then each docstring is folded onto one line
	require.Len(t, entries, 3)
	assert.Equal(t, "Fetch a URL. Retries on transient failures.", findEntry(t, entries, "fetch").Docstring)
	assert.Equal(t, "HTTP client wrapper.", findEntry(t, entries, "Client").Docstring)
	assert.Equal(t, "Issue a GET request.", findEntry(t, entries, "get").Docstring)
	assert.False(t, hasEntry(entries, "_bare"))
}

func TestExtract_PythonSingleQuotes(t *testing.T) {
	source := "def f():\n    '''Single-quoted docstring.'''\n    return 1\n"

	entries := harvest(t, source, "f.py", "python")

	require.Len(t, entries, 1)
	assert.Equal(t, "Single-quoted docstring.", entries[0].Docstring)
}

func TestExtract_JavaScript(t *testing.T) {
	// Given JS with JSDoc, a line comment, a class, and a plain const
	source := `/**
 * Boots the application.
 * @param {Object} opts - startup options
 */
function boot(opts) {}

// Legacy helper kept for the v1 API.
const legacy = () => {};

/** Wraps fetch with retries. */
class Http {
  /** Issues a GET request. */
  get(url) {
    return url;
  }
}

const notAFunction = 42;
`

	// When harvested
	entries := harvest(t, source, "web/app.js", "javascript")

	// Then functions, arrow bindings, classes, and methods all pair up
	require.Len(t, entries, 4)
	assert.Equal(t, "Boots the application. @param {Object} opts - startup options", findEntry(t, entries, "boot").Docstring)
	assert.Equal(t, "Legacy helper kept for the v1 API.", findEntry(t, entries, "legacy").Docstring)
	assert.Equal(t, "Wraps fetch with retries.", findEntry(t, entries, "Http").Docstring)
	assert.Equal(t, "Issues a GET request.", findEntry(t, entries, "get").Docstring)
	assert.False(t, hasEntry(entries, "notAFunction"))
}

func TestExtract_TypeScriptExports(t *testing.T) {
	// Given exported declarations whose comments sit above the export
	source := `/** A user of the system. */
export interface User {
  name: string;
}

/** Greets a user by name. */
export function greet(user: User): string {
  return user.name;
}

/** Formats a display label. */
export const label = (u: User): string => u.name;
`

	// When harvested
	entries := harvest(t, source, "src/user.ts", "typescript")

	// Then the comment anchor climbs out of the export statement
	require.Len(t, entries, 3)
	assert.Equal(t, "A user of the system.", findEntry(t, entries, "User").Docstring)
	assert.Equal(t, "Greets a user by name.", findEntry(t, entries, "greet").Docstring)
	assert.Equal(t, "Formats a display label.", findEntry(t, entries, "label").Docstring)
}

func TestExtract_TSXUsesDialectGrammar(t *testing.T) {
	// Given a component file with JSX syntax
	source := `/** Renders the status badge. */
export function Badge() {
  return <span>ok</span>;
}
`

	// When harvested as typescript from a .tsx path
	entries := harvest(t, source, "components/Badge.tsx", "typescript")

	// Then the tsx grammar parses it and pairing works
	require.Len(t, entries, 1)
	assert.Equal(t, "Badge", entries[0].FuncName)
	assert.Equal(t, "Renders the status badge.", entries[0].Docstring)
}

func TestExtract_UnsupportedLanguage(t *testing.T) {
	ex := New()
	defer ex.Close()

	_, err := ex.ExtractSource(context.Background(), []byte("puts 1"), "x.rb", "ruby")
	assert.ErrorContains(t, err, "unsupported language")
}

func TestCleanComment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line comments", "// one\n// two", "one two"},
		{"jsdoc block", "/**\n * Does a thing.\n * @param x input\n */", "Does a thing. @param x input"},
		{"plain block", "/* inline note */", "inline note"},
		{"directive only", "//go:generate stringer", ""},
		{"build tag", "// +build linux", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanComment(tt.in))
		})
	}
}

func TestCleanPythonString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"triple double", `"""Fetch.

    Retries.
    """`, "Fetch. Retries."},
		{"triple single", "'''One liner.'''", "One liner."},
		{"raw prefix", `r"""Raw doc."""`, "Raw doc."},
		{"plain double", `"Short."`, "Short."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanPythonString(tt.in))
		})
	}
}

func TestRun_WritesJSONLDataset(t *testing.T) {
	// Given a small source tree
	root := t.TempDir()
	writeSource(t, root, "lib/math.go", `package math

// Add returns the sum of a and b.
func Add(a, b int) int { return a + b }
`)
	writeSource(t, root, "lib/util.py", `def helper():
    """Does the thing."""
    return 1
`)
	out := filepath.Join(t.TempDir(), "data", "docstrings.jsonl")

	// When the harvest runs
	res, err := Run(context.Background(), Options{Root: root, OutputPath: out})
	require.NoError(t, err)

	// Then every documented declaration became one JSONL record
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Entries)
	assert.Equal(t, 0, res.Skipped)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	var got []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		got = append(got, e)
	}
	require.NoError(t, sc.Err())

	// WalkDir order is lexical, so the dataset order is stable
	require.Len(t, got, 2)
	assert.Equal(t, "Add", got[0].FuncName)
	assert.Equal(t, "lib/math.go", got[0].Path)
	assert.Equal(t, "helper", got[1].FuncName)
	assert.Equal(t, "Does the thing.", got[1].Docstring)
}

func TestRun_RequiresOutputPath(t *testing.T) {
	_, err := Run(context.Background(), Options{Root: t.TempDir()})
	assert.ErrorContains(t, err, "output path")
}

func TestRun_ReportsProgress(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "a.go", "package a\n\n// A does a.\nfunc A() {}\n")

	var calls int
	_, err := Run(context.Background(), Options{
		Root:       root,
		OutputPath: filepath.Join(t.TempDir(), "out.jsonl"),
		Progress:   func(files, entries int) { calls++ },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
