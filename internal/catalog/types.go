// Package catalog persists what a corpus build produced: a SQLite
// manifest of build records and a searchable sentence index with
// interchangeable SQLite FTS5 and Bleve backends. The corpus file is
// the source of truth; everything here can be rebuilt from it.
package catalog

import (
	"context"
	"time"
)

// Sentence is one indexed line of the corpus.
type Sentence struct {
	// Ordinal is the document's position in the corpus, counted in
	// scan order.
	Ordinal int
	// Line is the 1-based line number in the corpus file.
	Line int
	// Text is the unescaped sentence.
	Text string
}

// Hit is one search result.
type Hit struct {
	Sentence
	Score float64
}

// SentenceIndex is a searchable index over corpus sentences.
type SentenceIndex interface {
	// Add indexes sentences, replacing any previous entry for the
	// same line.
	Add(ctx context.Context, sentences []Sentence) error

	// Search returns up to limit hits ranked by relevance. A blank
	// query yields no hits.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)

	// Count reports the number of indexed sentences.
	Count() (int, error)

	// Clear removes every indexed sentence.
	Clear(ctx context.Context) error

	// Close releases the index. Idempotent.
	Close() error
}

// BuildRecord is one row of the build manifest.
type BuildRecord struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	DatasetPath string
	CorpusPath  string
	Documents   int
	Sentences   int
	Separators  int
	Bytes       int64
	Checksum    string
	Duration    time.Duration
	ToolVersion string
}

// LengthBucket is one sentence-length histogram bucket. Hi is
// exclusive; a zero Hi marks the open-ended final bucket.
type LengthBucket struct {
	Lo    int
	Hi    int
	Count int
}

// histogramWidth and histogramCeiling shape the fixed bucket layout:
// fixed-width buckets below the ceiling plus one open-ended bucket.
const (
	histogramWidth   = 20
	histogramCeiling = 200
)

// ComputeHistogram buckets sentence lengths (in runes) into the fixed
// layout used by the manifest. The bucket list is always complete so
// histograms from different builds line up.
func ComputeHistogram(lengths []int) []LengthBucket {
	var buckets []LengthBucket
	for lo := 0; lo < histogramCeiling; lo += histogramWidth {
		buckets = append(buckets, LengthBucket{Lo: lo, Hi: lo + histogramWidth})
	}
	buckets = append(buckets, LengthBucket{Lo: histogramCeiling})

	for _, n := range lengths {
		if n < 0 {
			continue
		}
		i := n / histogramWidth
		if i >= len(buckets)-1 {
			i = len(buckets) - 1
		}
		buckets[i].Count++
	}
	return buckets
}
