package corpus

import (
	"bufio"
	"io"
)

// maxLineBytes bounds a single corpus line. Escaped docstrings can get
// long but anything past this is a malformed file, not a sentence.
const maxLineBytes = 4 * 1024 * 1024

// Scanner walks an existing corpus stream document by document. A blank
// line closes the current document; consecutive blank lines therefore
// reconstruct the empty documents a Writer can produce. Documents are
// numbered by ordinal position, and their Sentences hold the raw
// escaped lines exactly as stored.
type Scanner struct {
	s    *bufio.Scanner
	doc  Document
	next int
	done bool
	err  error
}

// NewScanner returns a Scanner over r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Scanner{s: s}
}

// Scan advances to the next document. It returns false at end of input
// or on a read error; check Err afterwards.
func (sc *Scanner) Scan() bool {
	if sc.done {
		return false
	}

	var lines []string
	for sc.s.Scan() {
		line := sc.s.Text()
		if line == "" {
			sc.doc = Document{Index: sc.next, Sentences: lines}
			sc.next++
			return true
		}
		lines = append(lines, line)
	}

	sc.done = true
	if err := sc.s.Err(); err != nil {
		sc.err = err
		return false
	}
	if len(lines) > 0 {
		sc.doc = Document{Index: sc.next, Sentences: lines}
		sc.next++
		return true
	}
	return false
}

// Document returns the document read by the last successful Scan.
func (sc *Scanner) Document() Document {
	return sc.doc
}

// Err returns the first read error encountered, if any.
func (sc *Scanner) Err() error {
	return sc.err
}
