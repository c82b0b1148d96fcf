// Package pipeline turns a dataset into a corpus file: load, clean,
// split, write, index. Cleaning and splitting run in parallel per
// batch; writing is single threaded so document order on disk is the
// dataset order, always.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/pretextml/pretext/internal/catalog"
	"github.com/pretextml/pretext/internal/config"
	"github.com/pretextml/pretext/internal/dataset"
	pxerrors "github.com/pretextml/pretext/internal/errors"
	"github.com/pretextml/pretext/internal/sentence"
	"github.com/pretextml/pretext/internal/textclean"
	"github.com/pretextml/pretext/pkg/corpus"
)

// transformBatchSize is how many documents are cleaned and split in
// one parallel burst before the writer drains them in order.
const transformBatchSize = 256

// Stage names a pipeline phase, in execution order.
type Stage string

const (
	StageLoad  Stage = "load"
	StageClean Stage = "clean"
	StageSplit Stage = "split"
	StageWrite Stage = "write"
	StageIndex Stage = "index"
)

// StageTiming reports time spent in one stage. Load and write are
// wall-clock; clean and split are summed worker time, so they can
// exceed the wall-clock total on multicore runs.
type StageTiming struct {
	Stage    Stage
	Duration time.Duration
}

// Progress is a snapshot handed to the progress callback after each
// written batch.
type Progress struct {
	Stage     Stage
	Documents int
	Sentences int
}

// ProgressFunc receives build progress. It is called from the build
// goroutine, so it must not block.
type ProgressFunc func(Progress)

// Result summarizes a completed build.
type Result struct {
	CorpusPath       string
	Documents        int
	Sentences        int
	Separators       int
	EmptyDocuments   int
	SkippedRows      int
	Bytes            int64
	Checksum         string
	BuildID          int64
	IndexedSentences int
	CacheHits        uint64
	CacheMisses      uint64
	Duration         time.Duration
	Timings          []StageTiming
}

// Options configures a Builder.
type Options struct {
	Config      *config.Config
	Logger      *slog.Logger
	Progress    ProgressFunc
	ToolVersion string
}

// Builder runs the corpus build pipeline.
type Builder struct {
	cfg         *config.Config
	logger      *slog.Logger
	progress    ProgressFunc
	toolVersion string
	cleaner     *textclean.Cleaner
	splitter    sentence.Tokenizer
}

// New validates the configuration and assembles a Builder.
func New(opts Options) (*Builder, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline: config is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, pxerrors.ConfigError("invalid configuration", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cleaner, err := textclean.New(textclean.Options{
		StripHTML:          opts.Config.Clean.StripHTML,
		DropCodeBlocks:     opts.Config.Clean.DropCodeBlocks,
		CollapseWhitespace: opts.Config.Clean.CollapseWhitespace,
		CacheSize:          opts.Config.Clean.CacheSize,
	})
	if err != nil {
		return nil, err
	}

	splitter := sentence.NewRuleTokenizerWithOptions(sentence.Options{
		Abbreviations: opts.Config.Split.Abbreviations,
		MinChars:      opts.Config.Split.MinSentenceChars,
	})

	return &Builder{
		cfg:         opts.Config,
		logger:      logger,
		progress:    opts.Progress,
		toolVersion: opts.ToolVersion,
		cleaner:     cleaner,
		splitter:    splitter,
	}, nil
}

// ManifestPath is where the build manifest lives for a given config:
// manifest.db in the corpus directory.
func ManifestPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Output.Path), "manifest.db")
}

// IndexBasePath is the sentence index location for a given config,
// without the backend extension.
func IndexBasePath(cfg *config.Config) string {
	return cfg.Output.Path + ".index"
}

// Run executes the full pipeline. On any failure or cancellation the
// partially written corpus is discarded; the previous corpus file, if
// any, is only replaced once the new one is complete.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	corpusPath := b.cfg.Output.Path

	// Cancel the loader goroutine if the build bails out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lock := NewOutputLock(corpusPath)
	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer lock.Release()

	loader := dataset.New(dataset.Options{
		Path:         b.cfg.Dataset.Path,
		Format:       dataset.Format(b.cfg.Dataset.Format),
		TextField:    b.cfg.Dataset.TextField,
		MetaFields:   b.cfg.Dataset.MetaFields,
		MaxDocuments: b.cfg.Dataset.MaxDocuments,
	}, b.logger)

	records, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(corpusPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pxerrors.CorpusWriteError("create output directory", err)
		}
	}

	// Write to a sidecar and rename at the end, so readers never see a
	// half-written corpus and a failed run keeps the previous one.
	tmpPath := corpusPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, pxerrors.CorpusWriteError(fmt.Sprintf("create corpus file %s", tmpPath), err)
	}
	committed := false
	defer func() {
		if !committed {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	w := corpus.NewWriter(io.MultiWriter(f, hash))

	result := &Result{CorpusPath: corpusPath}
	var (
		lengths    []int
		loadDur    time.Duration
		writeDur   time.Duration
		cleanNanos atomic.Int64
		splitNanos atomic.Int64
	)

	batch := make([]dataset.Record, 0, transformBatchSize)

	processBatch := func() error {
		if len(batch) == 0 {
			return nil
		}

		slots := make([][]string, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.cfg.Build.Workers)

		for i, rec := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				t0 := time.Now()
				cleaned := b.cleaner.Clean(rec.Text)
				t1 := time.Now()
				sents := b.splitter.Tokenize(cleaned)
				cleanNanos.Add(int64(t1.Sub(t0)))
				splitNanos.Add(int64(time.Since(t1)))
				slots[i] = sents
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		wStart := time.Now()
		for i, sents := range slots {
			doc := corpus.Document{Index: batch[i].Index, Sentences: sents}
			if err := w.WriteDocument(doc); err != nil {
				return pxerrors.CorpusWriteError("write corpus document", err)
			}
			if len(sents) == 0 {
				result.EmptyDocuments++
			}
			for _, s := range sents {
				lengths = append(lengths, utf8.RuneCountInString(s))
			}
		}
		writeDur += time.Since(wStart)

		if b.progress != nil {
			c := w.Counts()
			b.progress(Progress{Stage: StageWrite, Documents: c.Documents, Sentences: c.Sentences})
		}
		batch = batch[:0]
		return nil
	}

	mark := time.Now()
	for res := range records {
		loadDur += time.Since(mark)

		if res.Err != nil {
			if dataset.IsRowError(res.Err) {
				result.SkippedRows++
				b.logger.Warn("skipping malformed row", "error", res.Err)
				mark = time.Now()
				continue
			}
			return nil, res.Err
		}

		batch = append(batch, *res.Record)
		if len(batch) == transformBatchSize {
			if err := processBatch(); err != nil {
				return nil, err
			}
		}
		mark = time.Now()
	}
	loadDur += time.Since(mark)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := processBatch(); err != nil {
		return nil, err
	}

	flushStart := time.Now()
	if err := w.Flush(); err != nil {
		return nil, pxerrors.CorpusWriteError("flush corpus file", err)
	}
	if err := f.Sync(); err != nil {
		return nil, pxerrors.CorpusWriteError("sync corpus file", err)
	}
	if err := f.Close(); err != nil {
		return nil, pxerrors.CorpusWriteError("close corpus file", err)
	}
	if err := os.Rename(tmpPath, corpusPath); err != nil {
		return nil, pxerrors.CorpusWriteError("publish corpus file", err)
	}
	committed = true
	writeDur += time.Since(flushStart)

	counts := w.Counts()
	result.Documents = counts.Documents
	result.Sentences = counts.Sentences
	result.Separators = counts.Separators
	result.Bytes = counts.Bytes
	result.Checksum = hex.EncodeToString(hash.Sum(nil))
	result.CacheHits, result.CacheMisses = b.cleaner.CacheStats()

	var indexDur time.Duration
	if b.cfg.Index.Enabled {
		t0 := time.Now()
		n, err := b.buildIndex(ctx, corpusPath)
		if err != nil {
			return nil, err
		}
		result.IndexedSentences = n
		indexDur = time.Since(t0)

		if b.progress != nil {
			b.progress(Progress{Stage: StageIndex, Documents: result.Documents, Sentences: result.Sentences})
		}
	}

	result.Duration = time.Since(start)
	result.Timings = []StageTiming{
		{StageLoad, loadDur},
		{StageClean, time.Duration(cleanNanos.Load())},
		{StageSplit, time.Duration(splitNanos.Load())},
		{StageWrite, writeDur},
		{StageIndex, indexDur},
	}

	if b.cfg.Output.Manifest {
		if err := b.recordBuild(ctx, result, lengths, start); err != nil {
			return nil, err
		}
	}

	b.logger.Info("corpus build complete",
		"corpus", corpusPath,
		"documents", result.Documents,
		"sentences", result.Sentences,
		"separators", result.Separators,
		"bytes", result.Bytes,
		"empty_documents", result.EmptyDocuments,
		"skipped_rows", result.SkippedRows,
		"duration", result.Duration)
	for _, st := range result.Timings {
		b.logger.Debug("stage timing", "stage", string(st.Stage), "duration", st.Duration)
	}

	return result, nil
}

// buildIndex rebuilds the sentence index from the freshly written
// corpus. Reading the file back instead of reusing in-memory batches
// means the index always reflects what is actually on disk.
func (b *Builder) buildIndex(ctx context.Context, corpusPath string) (int, error) {
	idx, err := catalog.NewSentenceIndex(IndexBasePath(b.cfg), b.cfg.Index.Backend)
	if err != nil {
		return 0, pxerrors.InternalError("create sentence index", err)
	}
	defer idx.Close()

	n, err := catalog.RebuildFromCorpus(ctx, idx, corpusPath, b.logger)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, pxerrors.InternalError("build sentence index", err)
	}
	return n, nil
}

// recordBuild appends this run to the manifest database.
func (b *Builder) recordBuild(ctx context.Context, result *Result, lengths []int, start time.Time) error {
	m, err := catalog.OpenManifest(ManifestPath(b.cfg))
	if err != nil {
		return pxerrors.New(pxerrors.ErrCodeManifestIO, "open build manifest", err)
	}
	defer m.Close()

	rec := &catalog.BuildRecord{
		StartedAt:   start.UTC(),
		FinishedAt:  time.Now().UTC(),
		DatasetPath: b.cfg.Dataset.Path,
		CorpusPath:  result.CorpusPath,
		Documents:   result.Documents,
		Sentences:   result.Sentences,
		Separators:  result.Separators,
		Bytes:       result.Bytes,
		Checksum:    result.Checksum,
		Duration:    result.Duration,
		ToolVersion: b.toolVersion,
	}

	id, err := m.RecordBuild(ctx, rec, catalog.ComputeHistogram(lengths))
	if err != nil {
		return pxerrors.New(pxerrors.ErrCodeManifestIO, "record build in manifest", err)
	}
	result.BuildID = id
	return nil
}
