package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pretextml/pretext/internal/catalog"
	"github.com/pretextml/pretext/internal/config"
)

// testCorpus is the canonical two-document corpus.
const testCorpus = "Hello world.\nIt works.\n\nSecond doc.\n"

type testFixture struct {
	server     *Server
	manifest   *catalog.Manifest
	index      catalog.SentenceIndex
	corpusPath string
}

// newTestFixture builds a server over a small corpus with a recorded
// build and an indexed sentence set.
func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	dir := t.TempDir()

	corpusPath := filepath.Join(dir, "corpus.txt")
	require.NoError(t, os.WriteFile(corpusPath, []byte(testCorpus), 0o644))

	manifest, err := catalog.OpenManifest(filepath.Join(dir, "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = manifest.Close() })

	_, err = manifest.RecordBuild(context.Background(), &catalog.BuildRecord{
		StartedAt:   time.Now().Add(-time.Second),
		FinishedAt:  time.Now(),
		DatasetPath: "data/docstrings.jsonl",
		CorpusPath:  corpusPath,
		Documents:   2,
		Sentences:   3,
		Separators:  1,
		Bytes:       int64(len(testCorpus)),
		Checksum:    "abc123",
		Duration:    time.Second,
		ToolVersion: "test",
	}, catalog.ComputeHistogram([]int{12, 9, 11}))
	require.NoError(t, err)

	index, err := catalog.NewSentenceIndex(filepath.Join(dir, "corpus.txt.index"), catalog.BackendSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	require.NoError(t, index.Add(context.Background(), []catalog.Sentence{
		{Ordinal: 0, Line: 1, Text: "Hello world."},
		{Ordinal: 0, Line: 2, Text: "It works."},
		{Ordinal: 1, Line: 4, Text: "Second doc."},
	}))

	srv, err := NewServer(manifest, index, config.NewConfig(), corpusPath)
	require.NoError(t, err)

	return &testFixture{server: srv, manifest: manifest, index: index, corpusPath: corpusPath}
}

func TestNewServer_RequiresManifest(t *testing.T) {
	_, err := NewServer(nil, nil, nil, "corpus.txt")
	assert.ErrorContains(t, err, "manifest is required")
}

func TestNewServer_NilConfigGetsDefaults(t *testing.T) {
	fx := newTestFixture(t)

	srv, err := NewServer(fx.manifest, fx.index, nil, fx.corpusPath)
	require.NoError(t, err)
	assert.NotNil(t, srv.MCPServer())
}

func TestServer_Info(t *testing.T) {
	fx := newTestFixture(t)

	name, ver := fx.server.Info()
	assert.Equal(t, "pretext", name)
	assert.NotEmpty(t, ver)
}

func TestServer_ListTools(t *testing.T) {
	fx := newTestFixture(t)

	tools := fx.server.ListTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "corpus_search", tools[0].Name)
	assert.Equal(t, "corpus_stats", tools[1].Name)
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description)
	}
}

func TestCallTool_SearchReturnsMarkdown(t *testing.T) {
	// Given a server over an indexed corpus
	fx := newTestFixture(t)

	// When searching for a word from the corpus
	out, err := fx.server.CallTool(context.Background(), "corpus_search", map[string]any{
		"query": "hello",
	})

	// Then the result is markdown containing the matching sentence
	require.NoError(t, err)
	text, ok := out.(string)
	require.True(t, ok, "search output should be a string")
	assert.Contains(t, text, "Corpus matches")
	assert.Contains(t, text, "Hello world.")
	assert.Contains(t, text, "document 0, line 1")
}

func TestCallTool_SearchNoHits(t *testing.T) {
	fx := newTestFixture(t)

	out, err := fx.server.CallTool(context.Background(), "corpus_search", map[string]any{
		"query": "zebra",
	})

	require.NoError(t, err)
	assert.Contains(t, out.(string), "No corpus sentences matched")
}

func TestCallTool_SearchRequiresQuery(t *testing.T) {
	fx := newTestFixture(t)

	_, err := fx.server.CallTool(context.Background(), "corpus_search", map[string]any{})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallTool_SearchRejectsWhitespaceQuery(t *testing.T) {
	fx := newTestFixture(t)

	_, err := fx.server.CallTool(context.Background(), "corpus_search", map[string]any{
		"query": "   ",
	})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestCallTool_SearchWithoutIndex(t *testing.T) {
	// Given a server built with indexing disabled
	fx := newTestFixture(t)
	srv, err := NewServer(fx.manifest, nil, config.NewConfig(), fx.corpusPath)
	require.NoError(t, err)

	// When searching
	_, err = srv.CallTool(context.Background(), "corpus_search", map[string]any{
		"query": "hello",
	})

	// Then the error points at the missing index
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeIndexNotFound, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "pretext build")
}

func TestCallTool_UnknownTool(t *testing.T) {
	fx := newTestFixture(t)

	_, err := fx.server.CallTool(context.Background(), "make_coffee", nil)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "make_coffee")
}

func TestCallTool_Stats(t *testing.T) {
	// Given a server with one recorded build
	fx := newTestFixture(t)

	// When asking for stats
	out, err := fx.server.CallTool(context.Background(), "corpus_stats", nil)
	require.NoError(t, err)

	// Then the latest build and index state come back
	stats, ok := out.(*StatsOutput)
	require.True(t, ok)
	assert.Equal(t, fx.corpusPath, stats.CorpusPath)
	require.NotNil(t, stats.LatestBuild)
	assert.Equal(t, 2, stats.LatestBuild.Documents)
	assert.Equal(t, 3, stats.LatestBuild.Sentences)
	assert.Equal(t, 1, stats.LatestBuild.Separators)
	assert.Equal(t, "abc123", stats.LatestBuild.Checksum)
	assert.Equal(t, "sqlite", stats.IndexBackend)
	assert.Equal(t, 3, stats.IndexedSentences)
	assert.NotEmpty(t, stats.Histogram)
}

func TestCallTool_StatsWithoutBuilds(t *testing.T) {
	// Given a manifest with no builds
	dir := t.TempDir()
	manifest, err := catalog.OpenManifest(filepath.Join(dir, "manifest.db"))
	require.NoError(t, err)
	defer func() { _ = manifest.Close() }()

	srv, err := NewServer(manifest, nil, nil, filepath.Join(dir, "corpus.txt"))
	require.NoError(t, err)

	// When asking for stats
	out, err := srv.CallTool(context.Background(), "corpus_stats", nil)
	require.NoError(t, err)

	// Then the output has no build but does not error
	stats := out.(*StatsOutput)
	assert.Nil(t, stats.LatestBuild)
	assert.Empty(t, stats.Histogram)
}

func TestMCPSearchHandler_TypedOutput(t *testing.T) {
	fx := newTestFixture(t)

	_, out, err := fx.server.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "second"})
	require.NoError(t, err)

	require.Len(t, out.Hits, 1)
	assert.Equal(t, 1, out.Hits[0].Document)
	assert.Equal(t, 4, out.Hits[0].Line)
	assert.Equal(t, "Second doc.", out.Hits[0].Text)
	assert.Greater(t, out.Hits[0].Score, 0.0)
}

func TestMCPSearchHandler_EmptyQuery(t *testing.T) {
	fx := newTestFixture(t)

	_, _, err := fx.server.mcpSearchHandler(context.Background(), nil, SearchInput{Query: " "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestMCPStatsHandler_TypedOutput(t *testing.T) {
	fx := newTestFixture(t)

	_, out, err := fx.server.mcpStatsHandler(context.Background(), nil, StatsInput{})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NotNil(t, out.LatestBuild)
}

func TestServe_UnknownTransport(t *testing.T) {
	fx := newTestFixture(t)

	err := fx.server.Serve(context.Background(), "sse")
	assert.ErrorContains(t, err, "unknown transport")
}

func TestSearchLimit_Clamping(t *testing.T) {
	// Given a corpus with more hits than the requested limit
	fx := newTestFixture(t)
	var sentences []catalog.Sentence
	for i := 0; i < 20; i++ {
		sentences = append(sentences, catalog.Sentence{
			Ordinal: 2 + i,
			Line:    6 + 2*i,
			Text:    "Common phrase appears here.",
		})
	}
	require.NoError(t, fx.index.Add(context.Background(), sentences))

	// When searching with limit 5
	_, out, err := fx.server.mcpSearchHandler(context.Background(), nil, SearchInput{Query: "common", Limit: 5})
	require.NoError(t, err)

	// Then at most 5 hits come back
	assert.LessOrEqual(t, len(out.Hits), 5)
	assert.NotEmpty(t, out.Hits)
}

func TestGenerateRequestID(t *testing.T) {
	a := generateRequestID()
	b := generateRequestID()

	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}

func TestReadResource_Corpus(t *testing.T) {
	// Given a built corpus
	fx := newTestFixture(t)

	// When reading the corpus resource
	res, err := fx.server.ReadResource(context.Background(), CorpusResourceURI)
	require.NoError(t, err)

	// Then the full corpus text comes back
	require.Len(t, res.Contents, 1)
	assert.Equal(t, testCorpus, res.Contents[0].Text)
	assert.Equal(t, "text/plain", res.Contents[0].MIMEType)
}

func TestReadResource_CorpusMissing(t *testing.T) {
	fx := newTestFixture(t)
	require.NoError(t, os.Remove(fx.corpusPath))

	_, err := fx.server.ReadResource(context.Background(), CorpusResourceURI)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeFileNotFound, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "pretext build")
}

func TestReadResource_CorpusTooLarge(t *testing.T) {
	// Given a corpus bigger than the resource cap
	fx := newTestFixture(t)
	big := strings.Repeat("This sentence pads the corpus past the cap.\n", MaxResourceSize/40)
	require.NoError(t, os.WriteFile(fx.corpusPath, []byte(big), 0o644))

	// When reading the corpus resource
	_, err := fx.server.ReadResource(context.Background(), CorpusResourceURI)

	// Then the client is pointed at corpus_search
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeFileTooLarge, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "corpus_search")
}

func TestReadResource_Manifest(t *testing.T) {
	fx := newTestFixture(t)

	res, err := fx.server.ReadResource(context.Background(), ManifestResourceURI)
	require.NoError(t, err)

	require.Len(t, res.Contents, 1)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)
	assert.Contains(t, res.Contents[0].Text, `"documents": 2`)
	assert.Contains(t, res.Contents[0].Text, `"checksum": "abc123"`)
}

func TestReadResource_Unknown(t *testing.T) {
	fx := newTestFixture(t)

	_, err := fx.server.ReadResource(context.Background(), "pretext://nope")

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeMethodNotFound, mcpErr.Code)
}
