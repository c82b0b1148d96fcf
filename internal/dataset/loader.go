package dataset

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pxerrors "github.com/pretextml/pretext/internal/errors"
)

// readBufferSize is the initial buffer for JSONL line reads. Rows can
// exceed it; bufio.Reader grows as needed.
const readBufferSize = 256 * 1024

// Loader streams dataset records from a file or directory.
type Loader struct {
	opts   Options
	logger *slog.Logger
	stats  Stats
}

// New creates a Loader for the given options.
func New(opts Options, logger *slog.Logger) *Loader {
	if opts.Format == "" {
		opts.Format = FormatAuto
	}
	if opts.TextField == "" {
		opts.TextField = "docstring"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{opts: opts, logger: logger}
}

// Load streams records in index order.
// It returns a channel of LoadResult that is closed when the source is
// exhausted, a non-row error occurs, or ctx is cancelled. Row-level
// problems (bad JSON, missing text field) arrive as LoadResult errors
// and the stream continues; anything else ends it.
func (l *Loader) Load(ctx context.Context) (<-chan LoadResult, error) {
	files, err := l.resolveFiles()
	if err != nil {
		return nil, err
	}

	results := make(chan LoadResult, 64)

	go func() {
		defer close(results)

		next := 0
		for _, path := range files {
			if ctx.Err() != nil {
				return
			}
			if l.limitReached() {
				break
			}

			format := l.fileFormat(path)
			l.logger.Debug("loading dataset file", "path", path, "format", string(format))

			var loadErr error
			switch format {
			case FormatJSONL:
				loadErr = l.loadJSONL(ctx, path, &next, results)
			default:
				loadErr = l.loadText(ctx, path, &next, results)
			}
			if loadErr != nil {
				send(ctx, results, LoadResult{Err: loadErr})
				return
			}
			l.stats.Files++
		}

		l.logger.Info("dataset loaded",
			"files", l.stats.Files,
			"records", l.stats.Records,
			"skipped", l.stats.Skipped)
	}()

	return results, nil
}

// LoadAll drains Load into a slice, logging and dropping row-level
// errors. It returns the records loaded so far alongside any error
// that ended the stream early.
func (l *Loader) LoadAll(ctx context.Context) ([]Record, Stats, error) {
	results, err := l.Load(ctx)
	if err != nil {
		return nil, Stats{}, err
	}

	var records []Record
	for res := range results {
		if res.Err != nil {
			if IsRowError(res.Err) {
				l.logger.Warn("skipping malformed row", "error", res.Err)
				continue
			}
			return records, l.stats, res.Err
		}
		records = append(records, *res.Record)
	}

	if err := ctx.Err(); err != nil {
		return records, l.stats, err
	}
	return records, l.stats, nil
}

// Stats reports load counters. Valid once the result channel is closed.
func (l *Loader) Stats() Stats {
	return l.stats
}

// IsRowError reports whether err is a per-row problem that the loader
// skipped rather than a failure of the load itself.
func IsRowError(err error) bool {
	switch pxerrors.GetCode(err) {
	case pxerrors.ErrCodeDatasetDecode, pxerrors.ErrCodeMissingTextField:
		return true
	}
	return false
}

// resolveFiles expands the configured path into an ordered list of
// source files.
func (l *Loader) resolveFiles() ([]string, error) {
	info, err := os.Stat(l.opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pxerrors.New(pxerrors.ErrCodeDatasetNotFound,
				fmt.Sprintf("dataset not found: %s", l.opts.Path), err).
				WithSuggestion("Check dataset.path in .pretext.yaml or pass --dataset.")
		}
		return nil, pxerrors.DatasetError(fmt.Sprintf("stat dataset %s", l.opts.Path), err)
	}

	if !info.IsDir() {
		return []string{l.opts.Path}, nil
	}

	var files []string
	for _, pattern := range []string{"*.jsonl", "*.jsonl.gz", "*.txt", "*.txt.gz"} {
		matches, err := filepath.Glob(filepath.Join(l.opts.Path, pattern))
		if err != nil {
			return nil, pxerrors.DatasetError("glob dataset directory", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, pxerrors.New(pxerrors.ErrCodeDatasetNotFound,
			fmt.Sprintf("no dataset files in %s", l.opts.Path), nil).
			WithSuggestion("Expected *.jsonl, *.jsonl.gz, *.txt, or *.txt.gz files.")
	}

	// Indices are assigned in file order, so the order must be stable.
	sort.Strings(files)
	return files, nil
}

// fileFormat resolves the decode format for one file.
func (l *Loader) fileFormat(path string) Format {
	if l.opts.Format != FormatAuto {
		return l.opts.Format
	}
	name := strings.TrimSuffix(path, ".gz")
	if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".json") {
		return FormatJSONL
	}
	return FormatText
}

// loadJSONL streams one JSON object per line, assigning indices from
// next. Blank lines are ignored.
func (l *Loader) loadJSONL(ctx context.Context, path string, next *int, out chan<- LoadResult) error {
	src, err := openSource(path)
	if err != nil {
		return pxerrors.DatasetError(fmt.Sprintf("open %s", path), err)
	}
	defer func() { _ = src.Close() }()

	reader := bufio.NewReaderSize(src, readBufferSize)
	lineNo := 0
	for {
		if l.limitReached() {
			return nil
		}

		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			trimmed := strings.TrimSpace(string(line))
			if trimmed != "" {
				rec, rowErr := l.decodeRow(trimmed, path, lineNo)
				if rowErr != nil {
					l.stats.Skipped++
					if !send(ctx, out, LoadResult{Err: rowErr}) {
						return ctx.Err()
					}
				} else {
					rec.Index = *next
					*next++
					l.stats.Records++
					if !send(ctx, out, LoadResult{Record: rec}) {
						return ctx.Err()
					}
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return pxerrors.DatasetError(fmt.Sprintf("read %s", path), readErr)
		}
	}
}

// loadText emits one record for the whole file.
func (l *Loader) loadText(ctx context.Context, path string, next *int, out chan<- LoadResult) error {
	src, err := openSource(path)
	if err != nil {
		return pxerrors.DatasetError(fmt.Sprintf("open %s", path), err)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		return pxerrors.DatasetError(fmt.Sprintf("read %s", path), err)
	}

	rec := &Record{Index: *next, Text: string(data)}
	*next++
	l.stats.Records++
	if !send(ctx, out, LoadResult{Record: rec}) {
		return ctx.Err()
	}
	return nil
}

// decodeRow parses one JSONL row into a Record without an index.
func (l *Loader) decodeRow(line, path string, lineNo int) (*Record, error) {
	var row map[string]any
	if err := json.Unmarshal([]byte(line), &row); err != nil {
		return nil, pxerrors.New(pxerrors.ErrCodeDatasetDecode, "row is not valid JSON", err).
			WithDetail("file", path).
			WithDetail("line", fmt.Sprintf("%d", lineNo))
	}

	raw, ok := row[l.opts.TextField]
	if !ok {
		return nil, pxerrors.New(pxerrors.ErrCodeMissingTextField,
			fmt.Sprintf("row has no %q field", l.opts.TextField), nil).
			WithDetail("file", path).
			WithDetail("line", fmt.Sprintf("%d", lineNo))
	}
	text, ok := raw.(string)
	if !ok {
		return nil, pxerrors.New(pxerrors.ErrCodeMissingTextField,
			fmt.Sprintf("field %q is not a string", l.opts.TextField), nil).
			WithDetail("file", path).
			WithDetail("line", fmt.Sprintf("%d", lineNo))
	}

	rec := &Record{Text: text}
	if len(l.opts.MetaFields) > 0 {
		rec.Meta = make(map[string]string, len(l.opts.MetaFields))
		for _, field := range l.opts.MetaFields {
			if v, present := row[field]; present {
				if s, isString := v.(string); isString {
					rec.Meta[field] = s
				} else {
					rec.Meta[field] = fmt.Sprintf("%v", v)
				}
			}
		}
	}
	return rec, nil
}

func (l *Loader) limitReached() bool {
	return l.opts.MaxDocuments > 0 && l.stats.Records >= l.opts.MaxDocuments
}

// send delivers one result unless the context ends first.
func send(ctx context.Context, out chan<- LoadResult, res LoadResult) bool {
	select {
	case out <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// openSource opens path, transparently unwrapping gzip by extension.
func openSource(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &gzipSource{gz: gz, file: f}, nil
}

// gzipSource closes both the gzip stream and the underlying file.
type gzipSource struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipSource) Read(p []byte) (int, error) {
	return g.gz.Read(p)
}

func (g *gzipSource) Close() error {
	gzErr := g.gz.Close()
	fileErr := g.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}
