package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pretextml/pretext/pkg/corpus"
)

// rebuildBatchSize bounds memory while streaming a large corpus into
// the index.
const rebuildBatchSize = 512

// RebuildFromCorpus repopulates idx from the corpus file at path. The
// corpus is the source of truth, so a lost or corrupted index is never
// more than one rebuild away. It returns the number of sentences
// indexed.
func RebuildFromCorpus(ctx context.Context, idx SentenceIndex, path string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	if err := idx.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	sc := corpus.NewScanner(f)
	batch := make([]Sentence, 0, rebuildBatchSize)
	total := 0

	// Line numbers are reconstructed from the layout: each sentence is
	// one line and a separator blank precedes every document after the
	// first, including empty ones.
	line := 1

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := idx.Add(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		doc := sc.Document()
		if doc.Index > 0 {
			line++
		}
		for _, raw := range doc.Sentences {
			batch = append(batch, Sentence{
				Ordinal: doc.Index,
				Line:    line,
				Text:    corpus.Unescape(raw),
			})
			line++
			if len(batch) == rebuildBatchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return total, fmt.Errorf("read corpus: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}

	logger.Info("sentence index rebuilt", "corpus", path, "sentences", total)
	return total, nil
}
