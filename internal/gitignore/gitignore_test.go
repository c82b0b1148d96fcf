package gitignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Patterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"extension anywhere", "*.log", "debug.log", false, true},
		{"extension in subdir", "*.log", "logs/debug.log", false, true},
		{"extension no match", "*.log", "debug.txt", false, false},
		{"dir only matches dir", "build/", "build", true, true},
		{"dir only skips file", "build/", "build", false, false},
		{"dir only matches contents", "build/", "build/out.txt", false, true},
		{"anchored root file", "/corpus.txt", "corpus.txt", false, true},
		{"anchored misses subdir", "/corpus.txt", "data/corpus.txt", false, false},
		{"slash anchors implicitly", "doc/frotz", "doc/frotz", false, true},
		{"implicit anchor misses nested", "doc/frotz", "sub/doc/frotz", false, false},
		{"double star prefix", "**/temp", "a/b/temp", false, true},
		{"double star suffix", "data/**", "data/x/y.txt", false, true},
		{"double star both", "**/__pycache__/**", "a/__pycache__/x.pyc", false, true},
		{"single char wildcard", "?.txt", "a.txt", false, true},
		{"single char needs one", "?.txt", "ab.txt", false, false},
		{"character class", "[abc].go", "a.go", false, true},
		{"character class no match", "[abc].go", "d.go", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir),
				"pattern %q against %q", tt.pattern, tt.path)
		})
	}
}

func TestMatcher_NegationReincludes(t *testing.T) {
	// Given an exclusion followed by a negation
	m := New()
	m.AddPattern("*.log")
	m.AddPattern("!important.log")

	// Then the negated file survives while the rest stay ignored
	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("important.log", false))
}

func TestMatcher_LaterRuleWins(t *testing.T) {
	// Given a negation that appears before the exclusion
	m := New()
	m.AddPattern("!important.log")
	m.AddPattern("*.log")

	// Then the later exclusion takes effect
	assert.True(t, m.Match("important.log", false))
}

func TestMatcher_SkipsCommentsAndBlanks(t *testing.T) {
	m := New()
	m.AddPattern("# just a comment")
	m.AddPattern("")
	m.AddPattern("   ")

	assert.False(t, m.Match("anything.txt", false))
}

func TestMatcher_EscapedHash(t *testing.T) {
	// Given a pattern for a file whose name starts with #
	m := New()
	m.AddPattern(`\#notes`)

	assert.True(t, m.Match("#notes", false))
}

func TestMatcher_NestedBase(t *testing.T) {
	// Given a pattern from a nested .gitignore under sub/
	m := New()
	m.AddPatternWithBase("*.tmp", "sub")

	// Then it applies under sub/ only
	assert.True(t, m.Match("sub/a.tmp", false))
	assert.True(t, m.Match("sub/deep/b.tmp", false))
	assert.False(t, m.Match("a.tmp", false))
	assert.False(t, m.Match("other/a.tmp", false))
}

func TestAddFromFile(t *testing.T) {
	// Given a .gitignore on disk
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	content := "# dependencies\nnode_modules/\n*.min.js\n\n!keep.min.js\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When loaded
	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	// Then patterns apply in file order
	assert.True(t, m.Match("node_modules/react/index.js", false))
	assert.True(t, m.Match("dist/app.min.js", false))
	assert.False(t, m.Match("keep.min.js", false))
	assert.False(t, m.Match("src/app.js", false))
}

func TestAddFromFile_Missing(t *testing.T) {
	m := New()
	err := m.AddFromFile(filepath.Join(t.TempDir(), "absent"), "")
	assert.Error(t, err)
}
