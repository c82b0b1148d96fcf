package verify

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/pretextml/pretext/pkg/corpus"
)

// scanReport holds everything a single pass over the corpus file can
// establish. All checks after the readability check consume it so the
// file is read exactly once.
type scanReport struct {
	path     string
	bytes    int64
	checksum string

	lines      int
	documents  int
	sentences  int
	separators int

	emptyDocuments int

	// First offending line numbers, 0 when clean.
	invalidASCIILine int
	nonCanonicalLine int

	endsWithNewline bool
	lastDocEmpty    bool
}

// scanCorpus reads the corpus once, hashing every byte and counting
// documents, sentences, and separators the same way the writer does:
// a blank line closes the current document, and a non-empty file has
// one more document than it has separators.
func scanCorpus(path string) (*scanReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	r := bufio.NewReaderSize(io.TeeReader(f, hasher), 256*1024)

	rep := &scanReport{path: path}
	curSentences := 0
	sawLine := false

	for {
		chunk, err := r.ReadBytes('\n')
		if len(chunk) > 0 {
			sawLine = true
			rep.bytes += int64(len(chunk))
			rep.lines++

			line := chunk
			rep.endsWithNewline = false
			if line[len(line)-1] == '\n' {
				line = line[:len(line)-1]
				rep.endsWithNewline = true
			}

			if len(line) == 0 {
				rep.separators++
				if curSentences == 0 {
					rep.emptyDocuments++
				}
				curSentences = 0
			} else {
				rep.sentences++
				curSentences++
				s := string(line)
				if rep.invalidASCIILine == 0 && !isCorpusASCII(s) {
					rep.invalidASCIILine = rep.lines
				}
				if rep.nonCanonicalLine == 0 && corpus.Escape(corpus.Unescape(s)) != s {
					rep.nonCanonicalLine = rep.lines
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	if sawLine {
		rep.documents = rep.separators + 1
		if curSentences == 0 {
			rep.emptyDocuments++
			rep.lastDocEmpty = true
		}
	}

	rep.checksum = hex.EncodeToString(hasher.Sum(nil))
	return rep, nil
}

// isCorpusASCII reports whether every byte is printable ASCII. Line
// breaks are stripped before this runs, so 0x20 through 0x7E is the
// entire legal range for an escaped sentence.
func isCorpusASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func (v *Verifier) checkReadable(corpusPath string) (*scanReport, CheckResult) {
	rep, err := scanCorpus(corpusPath)
	if err != nil {
		return nil, CheckResult{
			Name:     "corpus_readable",
			Status:   StatusFail,
			Message:  fmt.Sprintf("cannot read corpus: %v", err),
			Required: true,
		}
	}
	if rep.bytes == 0 {
		return rep, CheckResult{
			Name:     "corpus_readable",
			Status:   StatusPass,
			Message:  "empty corpus (0 documents)",
			Required: true,
		}
	}
	return rep, CheckResult{
		Name:   "corpus_readable",
		Status: StatusPass,
		Message: fmt.Sprintf("%d documents, %d sentences (%d bytes)",
			rep.documents, rep.sentences, rep.bytes),
		Required: true,
	}
}

func (v *Verifier) checkFinalNewline(rep *scanReport) CheckResult {
	if rep.bytes == 0 || rep.endsWithNewline {
		return CheckResult{
			Name:     "final_newline",
			Status:   StatusPass,
			Message:  "file ends with a newline",
			Required: true,
		}
	}
	return CheckResult{
		Name:     "final_newline",
		Status:   StatusFail,
		Message:  "file does not end with a newline",
		Details:  "every corpus line is newline terminated; a missing one usually means a truncated write",
		Required: true,
	}
}

func (v *Verifier) checkASCII(rep *scanReport) CheckResult {
	if rep.invalidASCIILine == 0 {
		return CheckResult{
			Name:     "ascii_encoding",
			Status:   StatusPass,
			Message:  "all bytes are printable ASCII",
			Required: true,
		}
	}
	return CheckResult{
		Name:     "ascii_encoding",
		Status:   StatusFail,
		Message:  fmt.Sprintf("non-ASCII or control byte on line %d", rep.invalidASCIILine),
		Details:  "escaped sentences contain only bytes 0x20 through 0x7e",
		Required: true,
	}
}

func (v *Verifier) checkCanonicalEscapes(rep *scanReport) CheckResult {
	if rep.nonCanonicalLine == 0 {
		return CheckResult{
			Name:     "canonical_escapes",
			Status:   StatusPass,
			Message:  "all lines survive an unescape/escape round trip",
			Required: false,
		}
	}
	return CheckResult{
		Name:     "canonical_escapes",
		Status:   StatusWarn,
		Message:  fmt.Sprintf("line %d is not in canonical escaped form", rep.nonCanonicalLine),
		Details:  "re-escaping the decoded line produced different bytes; the file was edited by hand or written by another tool",
		Required: false,
	}
}

func (v *Verifier) checkEmptyDocuments(rep *scanReport) CheckResult {
	if rep.emptyDocuments == 0 {
		return CheckResult{
			Name:     "empty_documents",
			Status:   StatusPass,
			Message:  "no empty documents",
			Required: false,
		}
	}
	return CheckResult{
		Name:     "empty_documents",
		Status:   StatusWarn,
		Message:  fmt.Sprintf("%d empty document(s)", rep.emptyDocuments),
		Details:  "empty documents show up as consecutive blank lines and usually mean the dataset had entries with no sentences",
		Required: false,
	}
}

func (v *Verifier) checkTrailingSeparator(rep *scanReport) CheckResult {
	if !rep.lastDocEmpty {
		return CheckResult{
			Name:     "trailing_separator",
			Status:   StatusPass,
			Message:  "no trailing separator",
			Required: false,
		}
	}
	return CheckResult{
		Name:     "trailing_separator",
		Status:   StatusWarn,
		Message:  "corpus ends with a blank line",
		Details:  "legal when the final document is empty, but readers that trim trailing blanks will drop it",
		Required: false,
	}
}
