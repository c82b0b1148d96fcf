// Package sentence splits plain text into ordered sentences.
//
// The rule tokenizer is deliberately simple: terminator runes followed
// by whitespace and a plausible sentence opener, with guards for
// abbreviations, initials, decimals, and ellipses. It never splits
// inside a whitespace-free span, so URLs and version numbers survive.
package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer splits text into ordered sentences.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Options configures a RuleTokenizer.
type Options struct {
	// Abbreviations extends the built-in abbreviation set. Entries
	// are matched case-insensitively without their trailing dot.
	Abbreviations []string

	// MinChars drops sentences shorter than this many runes after
	// trimming. Zero or one keeps everything non-empty.
	MinChars int
}

// RuleTokenizer is the default Tokenizer implementation.
type RuleTokenizer struct {
	abbrevs  map[string]bool
	minChars int
}

var _ Tokenizer = (*RuleTokenizer)(nil)

// defaultAbbreviations are common English abbreviations that end with
// a period mid-sentence.
var defaultAbbreviations = []string{
	"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "etc",
	"fig", "inc", "ltd", "co", "corp", "no", "vol", "pp", "cf", "al",
	"approx", "dept", "est", "min", "max",
}

// NewRuleTokenizer creates a tokenizer with the default rules.
func NewRuleTokenizer() *RuleTokenizer {
	return NewRuleTokenizerWithOptions(Options{})
}

// NewRuleTokenizerWithOptions creates a tokenizer with extra
// abbreviations and a minimum sentence length.
func NewRuleTokenizerWithOptions(opts Options) *RuleTokenizer {
	abbrevs := make(map[string]bool, len(defaultAbbreviations)+len(opts.Abbreviations))
	for _, a := range defaultAbbreviations {
		abbrevs[a] = true
	}
	for _, a := range opts.Abbreviations {
		a = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(a), "."))
		if a != "" {
			abbrevs[a] = true
		}
	}
	minChars := opts.MinChars
	if minChars < 1 {
		minChars = 1
	}
	return &RuleTokenizer{abbrevs: abbrevs, minChars: minChars}
}

// Tokenize splits text into trimmed sentences in original order.
// Blank input yields no sentences.
func (t *RuleTokenizer) Tokenize(text string) []string {
	runes := []rune(text)
	var sentences []string

	start := 0
	i := 0
	for i < len(runes) {
		if !isTerminator(runes[i]) {
			i++
			continue
		}

		// Absorb the whole terminator run ("...", "?!") and any
		// closing quotes or brackets that belong to the sentence.
		term := i
		end := i
		for end+1 < len(runes) && isTerminator(runes[end+1]) {
			end++
		}
		runLen := end - term + 1
		for end+1 < len(runes) && isCloser(runes[end+1]) {
			end++
		}

		if !t.isBoundary(runes, term, runLen, end) {
			i = end + 1
			continue
		}

		t.emit(&sentences, runes[start:end+1])
		i = end + 1
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		start = i
	}

	// Trailing text without a terminator is still a sentence.
	if start < len(runes) {
		t.emit(&sentences, runes[start:])
	}

	return sentences
}

// emit appends the trimmed span if it clears the minimum length.
func (t *RuleTokenizer) emit(sentences *[]string, span []rune) {
	s := strings.TrimSpace(string(span))
	if s == "" || utf8.RuneCountInString(s) < t.minChars {
		return
	}
	*sentences = append(*sentences, s)
}

// isBoundary decides whether the terminator run ending at end closes a
// sentence. term is the first terminator rune, runLen the length of
// the terminator run itself.
func (t *RuleTokenizer) isBoundary(runes []rune, term, runLen, end int) bool {
	// The terminator must be followed by whitespace or end of text;
	// a whitespace-free span is never split.
	if end+1 < len(runes) && !unicode.IsSpace(runes[end+1]) {
		return false
	}
	if end+1 >= len(runes) {
		return true
	}

	j := end + 1
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if j >= len(runes) {
		return true
	}
	if !plausibleOpener(runes[j]) {
		return false
	}

	// Abbreviation and initial guards apply to a lone period only;
	// an explicit ellipsis overrides them.
	if runes[term] == '.' && runLen == 1 {
		word := precedingWord(runes, term)
		if word != "" {
			wordRunes := []rune(word)
			if len(wordRunes) == 1 && unicode.IsLetter(wordRunes[0]) {
				return false
			}
			if t.abbrevs[strings.ToLower(word)] {
				return false
			}
		}
	}

	return true
}

// precedingWord returns the letter/digit run immediately before index
// term, or "" if the terminator follows whitespace or punctuation.
func precedingWord(runes []rune, term int) string {
	j := term
	for j > 0 && (unicode.IsLetter(runes[j-1]) || unicode.IsDigit(runes[j-1])) {
		j--
	}
	if j == term {
		return ""
	}
	return string(runes[j:term])
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isCloser matches quotes and brackets that trail a terminator.
func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	}
	return false
}

// plausibleOpener reports whether r can start a new sentence:
// uppercase or uncased letters, digits, and opening quotes/brackets.
// A lowercase continuation blocks the split.
func plausibleOpener(r rune) bool {
	if unicode.IsUpper(r) || unicode.IsDigit(r) {
		return true
	}
	if unicode.IsLetter(r) && !unicode.IsLower(r) {
		return true
	}
	switch r {
	case '"', '\'', '(', '[', '{', '“', '‘', '«':
		return true
	}
	return false
}
