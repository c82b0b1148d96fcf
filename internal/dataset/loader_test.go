package dataset

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pxerrors "github.com/pretextml/pretext/internal/errors"
)

func writeDataset(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, results <-chan LoadResult) ([]Record, []error) {
	t.Helper()
	var records []Record
	var errs []error
	for res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
			continue
		}
		records = append(records, *res.Record)
	}
	return records, errs
}

func TestLoader_JSONL_BasicRecords(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl", strings.Join([]string{
		`{"docstring": "First doc."}`,
		`{"docstring": "Second doc."}`,
		`{"docstring": "Third doc."}`,
	}, "\n")+"\n")

	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 3)

	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, "First doc.", records[0].Text)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, "Second doc.", records[1].Text)
	assert.Equal(t, 2, records[2].Index)
	assert.Equal(t, "Third doc.", records[2].Text)

	stats := loader.Stats()
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 3, stats.Records)
	assert.Zero(t, stats.Skipped)
}

func TestLoader_JSONL_CustomTextField(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl",
		`{"body": "Custom field doc.", "docstring": "wrong one"}`+"\n")

	loader := New(Options{Path: path, TextField: "body"}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "Custom field doc.", records[0].Text)
}

func TestLoader_JSONL_MetaFields(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl",
		`{"docstring": "Doc.", "func_name": "Parse", "line": 42, "ignored": "x"}`+"\n")

	loader := New(Options{Path: path, MetaFields: []string{"func_name", "line", "missing"}}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 1)

	assert.Equal(t, "Parse", records[0].Meta["func_name"])
	assert.Equal(t, "42", records[0].Meta["line"])
	assert.NotContains(t, records[0].Meta, "missing")
	assert.NotContains(t, records[0].Meta, "ignored")
}

func TestLoader_JSONL_MalformedRowSkipped(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl", strings.Join([]string{
		`{"docstring": "Good one."}`,
		`{not json at all`,
		`{"docstring": "Good two."}`,
	}, "\n")+"\n")

	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)

	// The bad row is reported but the stream continues.
	require.Len(t, errs, 1)
	assert.True(t, IsRowError(errs[0]))
	assert.Equal(t, pxerrors.ErrCodeDatasetDecode, pxerrors.GetCode(errs[0]))

	// Good rows keep contiguous indices; the bad row consumes none.
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, 1, records[1].Index)

	stats := loader.Stats()
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 1, stats.Skipped)
}

func TestLoader_JSONL_MissingTextFieldSkipped(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl", strings.Join([]string{
		`{"docstring": "Has the field."}`,
		`{"other": "No docstring here."}`,
		`{"docstring": 123}`,
	}, "\n")+"\n")

	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Len(t, records, 1)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, IsRowError(e))
		assert.Equal(t, pxerrors.ErrCodeMissingTextField, pxerrors.GetCode(e))
	}
	assert.Equal(t, 2, loader.Stats().Skipped)
}

func TestLoader_JSONL_BlankLinesIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl",
		"\n"+`{"docstring": "Only doc."}`+"\n\n\n")

	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Zero(t, loader.Stats().Skipped)
}

func TestLoader_JSONL_NoTrailingNewline(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl",
		`{"docstring": "First."}`+"\n"+`{"docstring": "Last, no newline."}`)

	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 2)
	assert.Equal(t, "Last, no newline.", records[1].Text)
}

func TestLoader_Gzip_Transparent(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "docs.jsonl.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(`{"docstring": "Compressed doc."}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "Compressed doc.", records[0].Text)
}

func TestLoader_TextFile_SingleDocument(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "notes.txt", "A whole file.\nStill the same document.\n")

	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 1)
	assert.Equal(t, "A whole file.\nStill the same document.\n", records[0].Text)
	assert.Nil(t, records[0].Meta)
}

func TestLoader_Directory_SortedOrderAcrossFiles(t *testing.T) {
	tmpDir := t.TempDir()
	// Written out of order on purpose; load order must be lexical.
	writeDataset(t, tmpDir, "b.jsonl", `{"docstring": "From b."}`+"\n")
	writeDataset(t, tmpDir, "a.jsonl", strings.Join([]string{
		`{"docstring": "From a, first."}`,
		`{"docstring": "From a, second."}`,
	}, "\n")+"\n")
	writeDataset(t, tmpDir, "c.txt", "From c.")
	writeDataset(t, tmpDir, "skipme.csv", "not,a,dataset\n")

	loader := New(Options{Path: tmpDir}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	require.Len(t, records, 4)

	// Indices run sequentially across files in sorted file order.
	texts := make([]string, len(records))
	for i, rec := range records {
		assert.Equal(t, i, rec.Index)
		texts[i] = rec.Text
	}
	assert.Equal(t, []string{"From a, first.", "From a, second.", "From b.", "From c."}, texts)
	assert.Equal(t, 3, loader.Stats().Files)
}

func TestLoader_Directory_NoDatasetFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeDataset(t, tmpDir, "readme.md", "# nothing loadable\n")

	loader := New(Options{Path: tmpDir}, nil)
	_, err := loader.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, pxerrors.ErrCodeDatasetNotFound, pxerrors.GetCode(err))
}

func TestLoader_PathNotFound(t *testing.T) {
	loader := New(Options{Path: "/nonexistent/dataset.jsonl"}, nil)
	_, err := loader.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, pxerrors.ErrCodeDatasetNotFound, pxerrors.GetCode(err))
}

func TestLoader_MaxDocuments_StopsEarly(t *testing.T) {
	tmpDir := t.TempDir()
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf(`{"docstring": "Doc %d."}`, i))
	}
	path := writeDataset(t, tmpDir, "docs.jsonl", strings.Join(lines, "\n")+"\n")

	loader := New(Options{Path: path, MaxDocuments: 3}, nil)
	results, err := loader.Load(context.Background())
	require.NoError(t, err)

	records, errs := collect(t, results)
	require.Empty(t, errs)
	assert.Len(t, records, 3)
	assert.Equal(t, 3, loader.Stats().Records)
}

func TestLoader_LoadAll_DropsRowErrors(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeDataset(t, tmpDir, "docs.jsonl", strings.Join([]string{
		`{"docstring": "Keep one."}`,
		`garbage`,
		`{"docstring": "Keep two."}`,
	}, "\n")+"\n")

	loader := New(Options{Path: path}, nil)
	records, stats, err := loader.LoadAll(context.Background())

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Keep one.", records[0].Text)
	assert.Equal(t, "Keep two.", records[1].Text)
	assert.Equal(t, 2, stats.Records)
	assert.Equal(t, 1, stats.Skipped)
}

func TestLoader_ContextCancellation_StopsStream(t *testing.T) {
	tmpDir := t.TempDir()
	var lines []string
	for i := 0; i < 500; i++ {
		lines = append(lines, fmt.Sprintf(`{"docstring": "Doc %d."}`, i))
	}
	path := writeDataset(t, tmpDir, "docs.jsonl", strings.Join(lines, "\n")+"\n")

	ctx, cancel := context.WithCancel(context.Background())
	loader := New(Options{Path: path}, nil)
	results, err := loader.Load(ctx)
	require.NoError(t, err)

	// Take one record, then cancel and drain whatever was buffered.
	<-results
	cancel()
	count := 1
	for range results {
		count++
	}

	assert.Less(t, count, 500, "cancellation should stop the stream early")
}

func TestLoader_FileFormat_Detection(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		forced Format
		want   Format
	}{
		{name: "jsonl extension", path: "a.jsonl", forced: FormatAuto, want: FormatJSONL},
		{name: "jsonl gzip", path: "a.jsonl.gz", forced: FormatAuto, want: FormatJSONL},
		{name: "json extension", path: "a.json", forced: FormatAuto, want: FormatJSONL},
		{name: "txt extension", path: "a.txt", forced: FormatAuto, want: FormatText},
		{name: "txt gzip", path: "a.txt.gz", forced: FormatAuto, want: FormatText},
		{name: "unknown extension", path: "a.dat", forced: FormatAuto, want: FormatText},
		{name: "forced jsonl", path: "a.dat", forced: FormatJSONL, want: FormatJSONL},
		{name: "forced text", path: "a.jsonl", forced: FormatText, want: FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := New(Options{Path: "unused", Format: tt.forced}, nil)
			assert.Equal(t, tt.want, loader.fileFormat(tt.path))
		})
	}
}
