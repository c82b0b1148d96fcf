// Package extract harvests docstrings from source trees into the
// JSONL dataset shape the build pipeline loads. Go, Python,
// JavaScript, and TypeScript files are parsed with tree-sitter; each
// documented function, method, class, type, or interface becomes one
// record pairing the declaration with its documentation as plain
// text.
package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	pxerrors "github.com/pretextml/pretext/internal/errors"
	"github.com/pretextml/pretext/internal/scanner"
)

// Entry is one harvested docstring record. Field names follow the
// default dataset schema, so `pretext build` consumes the output
// without configuration.
type Entry struct {
	Docstring string `json:"docstring"`
	FuncName  string `json:"func_name"`
	Path      string `json:"path"`
	Language  string `json:"language"`
	Line      int    `json:"line"`
}

// Extractor parses source files and pairs declarations with their
// documentation. Not safe for concurrent use.
type Extractor struct {
	parser *Parser
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{parser: NewParser()}
}

// Close releases parser resources.
func (e *Extractor) Close() {
	e.parser.Close()
}

// ExtractFile harvests one file from disk. relPath is recorded in the
// entries; the file is read from path.
func (e *Extractor) ExtractFile(ctx context.Context, path, relPath, language string) ([]Entry, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return e.ExtractSource(ctx, source, relPath, language)
}

// ExtractSource harvests documented declarations from source.
// Declarations without documentation produce no entry.
func (e *Extractor) ExtractSource(ctx context.Context, source []byte, relPath, language string) ([]Entry, error) {
	types, ok := declTypes[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	root, err := e.parser.Parse(ctx, source, language, relPath)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	root.Walk(func(n *Node) bool {
		if !types[n.Type] {
			return true
		}
		if entry, ok := e.entryFor(n, source, relPath, language); ok {
			entries = append(entries, entry)
		}
		return true
	})
	return entries, nil
}

func (e *Extractor) entryFor(n *Node, source []byte, relPath, language string) (Entry, bool) {
	var name, doc string

	switch {
	case n.Type == "lexical_declaration" || n.Type == "variable_declaration":
		// const f = () => {} style; only function bindings count
		name = functionDeclaratorName(n, source)
		doc = precedingComment(commentAnchor(n), source)
	case language == "python":
		name = nameOf(n, source, language)
		doc = pythonDocstring(n, source)
	default:
		name = nameOf(n, source, language)
		doc = precedingComment(commentAnchor(n), source)
	}

	if name == "" || doc == "" {
		return Entry{}, false
	}
	return Entry{
		Docstring: doc,
		FuncName:  name,
		Path:      relPath,
		Language:  language,
		Line:      int(n.StartRow) + 1,
	}, true
}

// commentAnchor climbs out of wrapper nodes so the comment lookup
// happens where the comment actually sits: above `export function f`
// the comment neighbors the export_statement, not the declaration.
func commentAnchor(n *Node) *Node {
	for n.Parent != nil {
		switch n.Parent.Type {
		case "export_statement", "decorated_definition", "ambient_declaration":
			n = n.Parent
		default:
			return n
		}
	}
	return n
}

// Options configures a harvest run.
type Options struct {
	// Root is the source tree to walk.
	Root string

	// OutputPath is the JSONL file to write.
	OutputPath string

	// Languages restricts the harvest; empty means all supported.
	Languages []string

	// ExcludePatterns are extra scanner exclusions.
	ExcludePatterns []string

	// RespectGitignore applies .gitignore files during the walk.
	RespectGitignore bool

	// MaxFileSize caps source file size (0 = scanner default).
	MaxFileSize int64

	// Progress, when set, is called after each harvested file.
	Progress func(files, entries int)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result summarizes a harvest run.
type Result struct {
	Files    int
	Entries  int
	Skipped  int
	Duration time.Duration
}

// Run walks the tree and writes one JSONL record per documented
// declaration. Files that fail to read or parse are skipped with a
// warning; traversal errors abort the run.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.OutputPath == "" {
		return nil, fmt.Errorf("extract: output path is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	s, err := scanner.New()
	if err != nil {
		return nil, err
	}
	files, err := s.Scan(ctx, scanner.Options{
		Root:             opts.Root,
		Languages:        opts.Languages,
		ExcludePatterns:  opts.ExcludePatterns,
		RespectGitignore: opts.RespectGitignore,
		MaxFileSize:      opts.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(opts.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	out, err := os.Create(opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("create dataset file: %w", err)
	}
	defer func() { _ = out.Close() }()

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	ex := New()
	defer ex.Close()

	res := &Result{}
	for r := range files {
		if r.Err != nil {
			return nil, pxerrors.New(pxerrors.ErrCodeExtractFailed,
				"failed to scan source tree", r.Err)
		}

		entries, err := ex.ExtractFile(ctx, r.File.AbsPath, r.File.Path, r.File.Language)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("skipping file",
				slog.String("path", r.File.Path),
				slog.String("error", err.Error()))
			res.Skipped++
			continue
		}

		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return nil, fmt.Errorf("write dataset record: %w", err)
			}
		}
		res.Files++
		res.Entries += len(entries)
		if opts.Progress != nil {
			opts.Progress(res.Files, res.Entries)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush dataset file: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close dataset file: %w", err)
	}

	res.Duration = time.Since(start)
	logger.Info("harvest complete",
		slog.Int("files", res.Files),
		slog.Int("entries", res.Entries),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", res.Duration))
	return res, nil
}
