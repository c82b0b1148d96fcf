package verify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pretextml/pretext/internal/catalog"
	"github.com/pretextml/pretext/pkg/corpus"
)

func writeTestCorpus(t *testing.T, dir string) (string, corpus.Counts) {
	t.Helper()
	docs := corpus.FromMap(map[int][]string{
		0: {"Hello world.", "It works."},
		1: {"Second doc."},
	})
	path := filepath.Join(dir, "corpus.txt")
	counts, err := corpus.WriteFile(path, docs)
	require.NoError(t, err)
	return path, counts
}

func writeRawCorpus(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fileSHA256(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func recordTestBuild(t *testing.T, manifestPath, corpusPath string, counts corpus.Counts, checksum string) {
	t.Helper()
	m, err := catalog.OpenManifest(manifestPath)
	require.NoError(t, err)
	defer func() { require.NoError(t, m.Close()) }()

	_, err = m.RecordBuild(context.Background(), &catalog.BuildRecord{
		StartedAt:   time.Now().Add(-time.Second),
		FinishedAt:  time.Now(),
		DatasetPath: "data/docstrings.jsonl",
		CorpusPath:  corpusPath,
		Documents:   counts.Documents,
		Sentences:   counts.Sentences,
		Separators:  counts.Separators,
		Bytes:       counts.Bytes,
		Checksum:    checksum,
		Duration:    time.Second,
		ToolVersion: "test",
	}, nil)
	require.NoError(t, err)
}

func findResult(t *testing.T, results []CheckResult, name string) CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no check named %q in results", name)
	return CheckResult{}
}

func TestRunAll_ValidCorpusPasses(t *testing.T) {
	// Given a freshly built corpus with a matching manifest
	dir := t.TempDir()
	corpusPath, counts := writeTestCorpus(t, dir)
	manifestPath := filepath.Join(dir, "manifest.db")
	recordTestBuild(t, manifestPath, corpusPath, counts, fileSHA256(t, corpusPath))

	// When all checks run
	v := New()
	results := v.RunAll(context.Background(), corpusPath, manifestPath)

	// Then every check passes
	for _, r := range results {
		assert.Equal(t, StatusPass, r.Status, "check %s: %s", r.Name, r.Message)
	}
	assert.False(t, HasCriticalFailures(results))
	assert.Equal(t, "ok", SummaryStatus(results))
}

func TestRunAll_MissingCorpus(t *testing.T) {
	// Given a corpus path that does not exist
	v := New()

	// When checks run
	results := v.RunAll(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), "")

	// Then only the readability check reports, as a critical failure
	require.Len(t, results, 1)
	assert.Equal(t, "corpus_readable", results[0].Name)
	assert.Equal(t, StatusFail, results[0].Status)
	assert.True(t, results[0].IsCritical())
	assert.Equal(t, "failed", SummaryStatus(results))
}

func TestRunAll_MissingFinalNewline(t *testing.T) {
	// Given a corpus whose last line lost its newline
	path := writeRawCorpus(t, t.TempDir(), "Hello world.\nIt works.")

	// When checks run
	results := New().RunAll(context.Background(), path, "")

	// Then the final newline check fails as required
	r := findResult(t, results, "final_newline")
	assert.Equal(t, StatusFail, r.Status)
	assert.True(t, r.IsCritical())
}

func TestRunAll_NonASCIIByte(t *testing.T) {
	// Given a corpus carrying raw UTF-8 instead of escapes
	path := writeRawCorpus(t, t.TempDir(), "A caf\xc3\xa9 visit.\n")

	// When checks run
	results := New().RunAll(context.Background(), path, "")

	// Then the encoding check fails and names the line
	r := findResult(t, results, "ascii_encoding")
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "line 1")
	assert.True(t, r.IsCritical())
}

func TestRunAll_NonCanonicalEscape(t *testing.T) {
	// Given a line that escapes a plain ASCII letter
	path := writeRawCorpus(t, t.TempDir(), "sees \\x41 stuff\n")

	// When checks run
	results := New().RunAll(context.Background(), path, "")

	// Then the canonical form check warns but is not critical
	r := findResult(t, results, "canonical_escapes")
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "line 1")
	assert.False(t, r.IsCritical())
	assert.False(t, HasCriticalFailures(results))
}

func TestRunAll_CanonicalEscapesPass(t *testing.T) {
	// Given canonical escapes and a lone backslash in plain text
	path := writeRawCorpus(t, t.TempDir(), "A caf\\xe9 visit.\n\na\\b stays.\n")

	// When checks run
	results := New().RunAll(context.Background(), path, "")

	// Then the canonical form check passes
	r := findResult(t, results, "canonical_escapes")
	assert.Equal(t, StatusPass, r.Status)
}

func TestRunAll_EmptyDocumentsWarn(t *testing.T) {
	// Given a corpus whose middle document has no sentences
	dir := t.TempDir()
	docs := corpus.FromMap(map[int][]string{
		0: {"First."},
		1: {},
		2: {"Last."},
	})
	path := filepath.Join(dir, "corpus.txt")
	_, err := corpus.WriteFile(path, docs)
	require.NoError(t, err)

	// When checks run
	results := New().RunAll(context.Background(), path, "")

	// Then the empty document check warns and the trailing check passes
	r := findResult(t, results, "empty_documents")
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "1 empty document(s)")
	assert.Equal(t, StatusPass, findResult(t, results, "trailing_separator").Status)
}

func TestRunAll_TrailingBlankLine(t *testing.T) {
	// Given a corpus that ends with a blank line
	path := writeRawCorpus(t, t.TempDir(), "First.\n\n")

	// When checks run
	results := New().RunAll(context.Background(), path, "")

	// Then the trailing separator check warns, the newline check passes
	assert.Equal(t, StatusWarn, findResult(t, results, "trailing_separator").Status)
	assert.Equal(t, StatusPass, findResult(t, results, "final_newline").Status)
	assert.False(t, HasCriticalFailures(results))
}

func TestRunAll_EmptyCorpus(t *testing.T) {
	// Given a zero-byte corpus
	path := writeRawCorpus(t, t.TempDir(), "")

	// When checks run without a manifest
	results := New().RunAll(context.Background(), path, "")

	// Then nothing fails
	assert.False(t, HasCriticalFailures(results))
	r := findResult(t, results, "corpus_readable")
	assert.Equal(t, StatusPass, r.Status)
	assert.Contains(t, r.Message, "empty corpus")
	assert.Equal(t, StatusPass, findResult(t, results, "final_newline").Status)
}

func TestRunAll_ManifestCountMismatch(t *testing.T) {
	// Given a manifest recorded with one document too many
	dir := t.TempDir()
	corpusPath, counts := writeTestCorpus(t, dir)
	manifestPath := filepath.Join(dir, "manifest.db")
	counts.Documents++
	recordTestBuild(t, manifestPath, corpusPath, counts, fileSHA256(t, corpusPath))

	// When checks run
	results := New().RunAll(context.Background(), corpusPath, manifestPath)

	// Then the count comparison fails and names the field
	r := findResult(t, results, "manifest_counts")
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "documents")
	assert.True(t, HasCriticalFailures(results))
}

func TestRunAll_ChecksumMismatch(t *testing.T) {
	// Given a manifest recorded before the corpus changed
	dir := t.TempDir()
	corpusPath, counts := writeTestCorpus(t, dir)
	manifestPath := filepath.Join(dir, "manifest.db")
	recordTestBuild(t, manifestPath, corpusPath, counts,
		"0000000000000000000000000000000000000000000000000000000000000000")

	// When checks run
	results := New().RunAll(context.Background(), corpusPath, manifestPath)

	// Then counts still match but the checksum comparison fails
	assert.Equal(t, StatusPass, findResult(t, results, "manifest_counts").Status)
	r := findResult(t, results, "manifest_checksum")
	assert.Equal(t, StatusFail, r.Status)
	assert.True(t, r.IsCritical())
}

func TestRunAll_ManifestMissing(t *testing.T) {
	// Given a corpus with no manifest on disk
	dir := t.TempDir()
	corpusPath, _ := writeTestCorpus(t, dir)
	manifestPath := filepath.Join(dir, "manifest.db")

	// When checks run
	results := New().RunAll(context.Background(), corpusPath, manifestPath)

	// Then the manifest check warns without failing the run
	r := findResult(t, results, "manifest")
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "not found")
	assert.False(t, HasCriticalFailures(results))

	// And the missing file was not created as a side effect
	_, err := os.Stat(manifestPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRunAll_ManifestWithoutBuilds(t *testing.T) {
	// Given an initialized manifest that never recorded a build
	dir := t.TempDir()
	corpusPath, _ := writeTestCorpus(t, dir)
	manifestPath := filepath.Join(dir, "manifest.db")
	m, err := catalog.OpenManifest(manifestPath)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	// When checks run
	results := New().RunAll(context.Background(), corpusPath, manifestPath)

	// Then the manifest check warns about the empty history
	r := findResult(t, results, "manifest")
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "no recorded builds")
}

func TestScanCorpus_Counting(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		documents  int
		sentences  int
		separators int
		empty      int
		lastEmpty  bool
	}{
		{
			name:       "two documents",
			content:    "Hello world.\nIt works.\n\nSecond doc.\n",
			documents:  2,
			sentences:  3,
			separators: 1,
		},
		{
			name:       "empty middle document",
			content:    "a\n\n\nb\n",
			documents:  3,
			sentences:  2,
			separators: 2,
			empty:      1,
		},
		{
			name:       "empty final document",
			content:    "a\n\n",
			documents:  2,
			sentences:  1,
			separators: 1,
			empty:      1,
			lastEmpty:  true,
		},
		{
			name:    "empty file",
			content: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRawCorpus(t, t.TempDir(), tt.content)

			rep, err := scanCorpus(path)
			require.NoError(t, err)

			assert.Equal(t, tt.documents, rep.documents, "documents")
			assert.Equal(t, tt.sentences, rep.sentences, "sentences")
			assert.Equal(t, tt.separators, rep.separators, "separators")
			assert.Equal(t, tt.empty, rep.emptyDocuments, "empty documents")
			assert.Equal(t, tt.lastEmpty, rep.lastDocEmpty, "last document empty")
			assert.Equal(t, int64(len(tt.content)), rep.bytes, "bytes")
		})
	}
}

func TestScanCorpus_Checksum(t *testing.T) {
	// Given a corpus file
	dir := t.TempDir()
	path, _ := writeTestCorpus(t, dir)

	// When scanned
	rep, err := scanCorpus(path)
	require.NoError(t, err)

	// Then the checksum matches an independent hash of the bytes
	assert.Equal(t, fileSHA256(t, path), rep.checksum)
}

func TestCheckStatus_String(t *testing.T) {
	assert.Equal(t, "PASS", StatusPass.String())
	assert.Equal(t, "WARN", StatusWarn.String())
	assert.Equal(t, "FAIL", StatusFail.String())
	assert.Equal(t, "UNKNOWN", CheckStatus(99).String())
}

func TestHasCriticalFailures(t *testing.T) {
	assert.True(t, HasCriticalFailures([]CheckResult{
		{Name: "a", Status: StatusFail, Required: true},
	}))
	assert.False(t, HasCriticalFailures([]CheckResult{
		{Name: "a", Status: StatusFail, Required: false},
		{Name: "b", Status: StatusWarn, Required: true},
		{Name: "c", Status: StatusPass, Required: true},
	}))
}

func TestSummaryStatus(t *testing.T) {
	assert.Equal(t, "ok", SummaryStatus([]CheckResult{
		{Status: StatusPass, Required: true},
	}))
	assert.Equal(t, "ok_with_warnings", SummaryStatus([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusWarn},
	}))
	assert.Equal(t, "failed", SummaryStatus([]CheckResult{
		{Status: StatusFail, Required: true},
		{Status: StatusWarn},
	}))
}

func TestPrintResults(t *testing.T) {
	// Given mixed results
	var buf bytes.Buffer
	v := New(WithOutput(&buf))
	results := []CheckResult{
		{Name: "corpus_readable", Status: StatusPass, Message: "2 documents, 3 sentences (37 bytes)", Required: true},
		{Name: "empty_documents", Status: StatusWarn, Message: "1 empty document(s)"},
	}

	// When printed
	v.PrintResults(results)

	// Then the report carries the header, the rows, and the summary
	out := buf.String()
	assert.Contains(t, out, "Pretext Corpus Check")
	assert.Contains(t, out, "[PASS] corpus_readable: 2 documents, 3 sentences (37 bytes)")
	assert.Contains(t, out, "[WARN] empty_documents: 1 empty document(s)")
	assert.Contains(t, out, "Status: OK_WITH_WARNINGS")
	assert.Contains(t, out, "1 warning(s):")
}

func TestPrintResults_CriticalFailure(t *testing.T) {
	// Given a required check that failed
	var buf bytes.Buffer
	v := New(WithOutput(&buf))

	// When printed
	v.PrintResults([]CheckResult{
		{Name: "ascii_encoding", Status: StatusFail, Message: "non-ASCII or control byte on line 7", Required: true},
	})

	// Then the summary lists it as an error
	out := buf.String()
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "- ascii_encoding: non-ASCII or control byte on line 7")
}

func TestPrintResults_VerboseShowsDetails(t *testing.T) {
	// Given a verbose verifier and a result with details
	var buf bytes.Buffer
	v := New(WithOutput(&buf), WithVerbose(true))

	// When printed
	v.PrintResults([]CheckResult{
		{Name: "trailing_separator", Status: StatusWarn, Message: "corpus ends with a blank line", Details: "legal when the final document is empty"},
	})

	// Then the details line is indented under the row
	assert.Contains(t, buf.String(), "      legal when the final document is empty")
}

func TestPreflight_WritableDirectory(t *testing.T) {
	// Given a writable output directory
	results := Preflight(t.TempDir())

	// Then both environment checks pass
	assert.Equal(t, StatusPass, findResult(t, results, "write_permissions").Status)
	assert.Equal(t, StatusPass, findResult(t, results, "disk_space").Status)
	assert.False(t, HasCriticalFailures(results))
}

func TestPreflight_MissingDirectoryUsesAncestor(t *testing.T) {
	// Given an output directory the build has not created yet
	dir := filepath.Join(t.TempDir(), "out", "nested")

	// When preflight runs
	results := Preflight(dir)

	// Then checks run against the nearest existing ancestor and pass
	assert.False(t, HasCriticalFailures(results))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "2.0 KB", formatBytes(2048))
	assert.Equal(t, "100.0 MB", formatBytes(MinDiskSpaceBytes))
	assert.Equal(t, "1.5 GB", formatBytes(1610612736))
}
