package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pretextml/pretext/internal/catalog"
	pxerrors "github.com/pretextml/pretext/internal/errors"
)

// chdirProject moves into an isolated project directory for the test.
func chdirProject(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })
	return tmpDir
}

// seedSentenceIndex writes a small SQLite index where the search
// command expects one for the default output path.
func seedSentenceIndex(t *testing.T, projectRoot string, sentences []catalog.Sentence) {
	t.Helper()
	base := filepath.Join(projectRoot, "corpus.txt.index")
	idx, err := catalog.NewSentenceIndex(base, catalog.BackendSQLite)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), sentences))
	require.NoError(t, idx.Close())
}

func TestSearchCmd_EmptyQueryFails(t *testing.T) {
	// Given: a whitespace-only query
	chdirProject(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "   "})

	// When: executing search
	err := cmd.Execute()

	// Then: a structured query error is returned
	require.Error(t, err)
	var pe *pxerrors.PretextError
	require.True(t, errors.As(err, &pe), "expected a PretextError")
	assert.Equal(t, pxerrors.ErrCodeQueryEmpty, pe.Code)
}

func TestSearchCmd_NoIndexFails(t *testing.T) {
	// Given: a project that was never built
	chdirProject(t)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "tokenizer"})

	// When: executing search
	err := cmd.Execute()

	// Then: the error points at the missing build
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sentence index")
	assert.Contains(t, err.Error(), "pretext build")
}

func TestSearchCmd_FindsIndexedSentences(t *testing.T) {
	// Given: an index with two sentences
	root := chdirProject(t)
	seedSentenceIndex(t, root, []catalog.Sentence{
		{Ordinal: 0, Line: 1, Text: "The tokenizer splits raw text."},
		{Ordinal: 1, Line: 3, Text: "Vocabulary size shapes the model."},
	})

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "tokenizer"})

	// When: searching for a word from the first sentence
	err := cmd.Execute()

	// Then: only that sentence is reported, with its corpus location
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Found 1 results")
	assert.Contains(t, output, "line 1")
	assert.Contains(t, output, "tokenizer splits")
	assert.NotContains(t, output, "Vocabulary")
}

func TestSearchCmd_NoResultsMessage(t *testing.T) {
	// Given: an index without the queried term
	root := chdirProject(t)
	seedSentenceIndex(t, root, []catalog.Sentence{
		{Ordinal: 0, Line: 1, Text: "The tokenizer splits raw text."},
	})

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "nonexistentterm"})

	// When: searching
	err := cmd.Execute()

	// Then: a friendly empty-result message, not an error
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No results found")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	// Given: an indexed sentence
	root := chdirProject(t)
	seedSentenceIndex(t, root, []catalog.Sentence{
		{Ordinal: 2, Line: 7, Text: "Masked language modeling needs pairs."},
	})

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search", "--json", "masked"})

	// When: searching with --json
	err := cmd.Execute()

	// Then: output decodes into hits with line and document fields
	require.NoError(t, err)

	var hits []struct {
		Line     int     `json:"line"`
		Document int     `json:"document"`
		Score    float64 `json:"score"`
		Text     string  `json:"text"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, 7, hits[0].Line)
	assert.Equal(t, 2, hits[0].Document)
	assert.Contains(t, hits[0].Text, "Masked language")
}

func TestTruncateSentence_RuneSafe(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short stays", "hello", 10, "hello"},
		{"exact stays", "hello", 5, "hello"},
		{"long truncates", "hello world", 5, "hello..."},
		{"multibyte boundary", "héllo wörld", 7, "héllo w..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateSentence(tt.in, tt.max))
		})
	}
}
