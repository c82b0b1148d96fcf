package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
)

// writerBufferSize is the buffer in front of the destination. Corpus
// writes are strictly sequential, so one buffer is all we need.
const writerBufferSize = 64 * 1024

// Document is one corpus unit: an ordered run of sentences sharing a
// document index. When read back by a Scanner, Sentences holds the raw
// escaped lines; call Unescape to recover the original text.
type Document struct {
	Index     int
	Sentences []string
}

// Counts summarizes what a Writer has emitted.
type Counts struct {
	Documents  int
	Sentences  int
	Separators int
	Bytes      int64
}

// Writer streams documents into the blank-line-delimited corpus layout.
// The separator decision is a stateful fold: a blank line goes out
// whenever the incoming document's index differs from the last one
// seen, except before the very first document. An explicit started flag
// guards the first document; comparing against a sentinel index would
// misfire when a real document carries that index.
type Writer struct {
	w       *bufio.Writer
	lastIdx int
	started bool
	counts  Counts
}

// NewWriter wraps w for corpus serialization. Nothing is written until
// the first WriteDocument; Flush must be called before the underlying
// writer is closed.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, writerBufferSize)}
}

// WriteDocument appends one document. A document with no sentences
// emits no lines but still participates in the index-change check, so
// an empty document between two others produces consecutive blank
// lines. Sentences are escaped but otherwise passed through unvalidated;
// a sentence with an embedded newline will fabricate an extra corpus
// line. Any write error is terminal for the run.
func (w *Writer) WriteDocument(doc Document) error {
	if w.started && doc.Index != w.lastIdx {
		if err := w.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write separator: %w", err)
		}
		w.counts.Separators++
		w.counts.Bytes++
	}
	w.started = true
	w.lastIdx = doc.Index
	w.counts.Documents++

	for _, s := range doc.Sentences {
		line := Escape(s)
		if _, err := w.w.WriteString(line); err != nil {
			return fmt.Errorf("write sentence: %w", err)
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write sentence: %w", err)
		}
		w.counts.Sentences++
		w.counts.Bytes += int64(len(line)) + 1
	}
	return nil
}

// Flush pushes buffered output through to the destination.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush corpus: %w", err)
	}
	return nil
}

// Counts returns the running totals for everything written so far.
func (w *Writer) Counts() Counts {
	return w.counts
}

// FromMap converts an index-keyed mapping into documents sorted by
// index, the visit order the corpus format requires.
func FromMap(m map[int][]string) []Document {
	idxs := make([]int, 0, len(m))
	for i := range m {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)

	docs := make([]Document, 0, len(idxs))
	for _, i := range idxs {
		docs = append(docs, Document{Index: i, Sentences: m[i]})
	}
	return docs
}

// Write serializes docs to w in the order given and returns the counts.
func Write(w io.Writer, docs []Document) (Counts, error) {
	cw := NewWriter(w)
	for _, d := range docs {
		if err := cw.WriteDocument(d); err != nil {
			return cw.Counts(), err
		}
	}
	if err := cw.Flush(); err != nil {
		return cw.Counts(), err
	}
	return cw.Counts(), nil
}

// WriteFile serializes docs into a newly created file at path,
// truncating any existing file. An empty docs slice still creates the
// file, which ends up zero bytes. The file is closed on every exit
// path; a failed close after a clean write is reported.
func WriteFile(path string, docs []Document) (Counts, error) {
	f, err := os.Create(path)
	if err != nil {
		return Counts{}, fmt.Errorf("create corpus file: %w", err)
	}

	counts, werr := Write(f, docs)
	cerr := f.Close()
	if werr != nil {
		return counts, werr
	}
	if cerr != nil {
		return counts, fmt.Errorf("close corpus file: %w", cerr)
	}
	return counts, nil
}
