package catalog

import (
	"regexp"
	"strings"
	"unicode"
)

// termRegex extracts word-like runs. Punctuation never reaches the
// index, so "Parse(data)" and "Parse data" search the same.
var termRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// DefaultStopTerms are function words dropped at index and query time.
// Docstring prose leans on them heavily without them carrying any
// search signal.
var DefaultStopTerms = []string{
	"the", "a", "an", "and", "or", "of", "to", "in", "is", "are",
	"was", "were", "be", "been", "it", "its", "this", "that", "as",
	"at", "by", "for", "from", "on", "with", "if", "when", "which",
}

// TokenizeSentence splits a sentence into lowercase search terms.
// Identifiers embedded in prose are split on underscores and case
// boundaries, so "parseHTML" is findable as "parse" and "html".
// Terms shorter than two characters are dropped.
func TokenizeSentence(text string) []string {
	words := termRegex.FindAllString(text, -1)

	var terms []string
	for _, word := range words {
		for _, part := range SplitIdentifier(word) {
			lower := strings.ToLower(part)
			if len(lower) >= 2 {
				terms = append(terms, lower)
			}
		}
	}
	return terms
}

// SplitIdentifier breaks a word on underscores and camelCase
// boundaries. Plain words pass through as a single part.
func SplitIdentifier(word string) []string {
	var parts []string
	for _, chunk := range strings.Split(word, "_") {
		if chunk == "" {
			continue
		}
		parts = append(parts, SplitCamelCase(chunk)...)
	}
	return parts
}

// SplitCamelCase splits on case transitions, keeping acronyms intact:
// "HTTPHandler" becomes ["HTTP", "Handler"], "parseHTML" becomes
// ["parse", "HTML"].
func SplitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	runes := []rune(s)
	var parts []string
	start := 0

	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		// Split before an uppercase rune when it starts a new word:
		// the previous rune is lowercase, or the next one is.
		prevLower := unicode.IsLower(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	parts = append(parts, string(runes[start:]))
	return parts
}

// StopTermSet builds a lookup set from a stop term list.
func StopTermSet(terms []string) map[string]bool {
	set := make(map[string]bool, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = true
	}
	return set
}

// FilterStopTerms removes stop terms from a token list.
func FilterStopTerms(terms []string, stop map[string]bool) []string {
	if len(stop) == 0 {
		return terms
	}
	var kept []string
	for _, t := range terms {
		if !stop[t] {
			kept = append(kept, t)
		}
	}
	return kept
}
