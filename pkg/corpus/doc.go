// Package corpus serializes documents into the sentence-per-line corpus
// format consumed by BERT-style pre-training tools: one sentence per
// line, consecutive documents separated by exactly one blank line, and
// every line reduced to printable ASCII by a reversible backslash
// escape.
//
// # Usage
//
// Serialize an index-keyed mapping:
//
//	docs := corpus.FromMap(map[int][]string{
//	    0: {"Hello world.", "It works."},
//	    1: {"Second doc."},
//	})
//	counts, err := corpus.WriteFile("corpus.txt", docs)
//
// Or stream documents through a Writer when the caller already has them
// in index order:
//
//	w := corpus.NewWriter(f)
//	for _, d := range docs {
//	    if err := w.WriteDocument(d); err != nil {
//	        return err
//	    }
//	}
//	err := w.Flush()
//
// Reading an existing corpus back is the inverse walk over blank-line
// boundaries:
//
//	sc := corpus.NewScanner(f)
//	for sc.Scan() {
//	    doc := sc.Document() // lines still escaped
//	}
//
// # Format guarantees
//
// The number of non-blank lines equals the total sentence count, N
// documents with strictly increasing indices produce N-1 separator
// lines, and serializing the same input twice is byte-identical. A
// document with zero sentences contributes no lines but still counts as
// a visited document, so an empty document between two non-empty ones
// yields two consecutive blank lines.
package corpus
