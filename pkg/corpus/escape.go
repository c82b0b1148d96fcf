package corpus

import (
	"strings"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// Escape converts a sentence into its corpus line form. Printable ASCII
// passes through untouched; newlines, carriage returns and tabs become
// their mnemonic escapes; every other control or non-ASCII character
// becomes \xNN, \uNNNN or \UNNNNNNNN by code point width. After
// escaping, doubled backslashes are collapsed back to single ones, so a
// literal backslash in the input survives as a single backslash in the
// output.
func Escape(s string) string {
	if isPrintableASCII(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	for _, r := range s {
		appendEscaped(&b, r)
	}
	return collapseBackslashes(b.String())
}

// Unescape reverses Escape. It recognizes exactly the sequences Escape
// emits (\n, \r, \t, \\, \xNN, \uNNNN, \UNNNNNNNN). A backslash
// followed by anything else, a truncated hex sequence, or a hex value
// that is not a valid code point passes through literally, so text such
// as `a\b` survives a round trip unchanged. The function never fails;
// malformed input comes back out as-is.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			// trailing lone backslash
			b.WriteByte('\\')
			break
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case 't':
			b.WriteByte('\t')
			i += 2
		case '\\':
			b.WriteByte('\\')
			i += 2
		case 'x':
			if v, ok := parseHex(s, i+2, 2); ok {
				b.WriteRune(rune(v))
				i += 4
			} else {
				b.WriteByte('\\')
				i++
			}
		case 'u':
			if v, ok := parseHex(s, i+2, 4); ok && utf8.ValidRune(rune(v)) {
				b.WriteRune(rune(v))
				i += 6
			} else {
				b.WriteByte('\\')
				i++
			}
		case 'U':
			if v, ok := parseHex(s, i+2, 8); ok && utf8.ValidRune(rune(v)) {
				b.WriteRune(rune(v))
				i += 10
			} else {
				b.WriteByte('\\')
				i++
			}
		default:
			// unknown escape: keep the backslash, let the next
			// iteration emit the following character untouched
			b.WriteByte('\\')
			i++
		}
	}
	return b.String()
}

// appendEscaped writes the escaped form of a single rune.
func appendEscaped(b *strings.Builder, r rune) {
	switch {
	case r == '\\':
		b.WriteString(`\\`)
	case r == '\n':
		b.WriteString(`\n`)
	case r == '\r':
		b.WriteString(`\r`)
	case r == '\t':
		b.WriteString(`\t`)
	case r >= 0x20 && r <= 0x7e:
		b.WriteRune(r)
	case r < 0x100:
		b.WriteString(`\x`)
		writeHex(b, uint32(r), 2)
	case r <= 0xffff:
		b.WriteString(`\u`)
		writeHex(b, uint32(r), 4)
	default:
		b.WriteString(`\U`)
		writeHex(b, uint32(r), 8)
	}
}

// collapseBackslashes folds every doubled backslash produced by the
// escaping pass back into a single one. The collapse is part of the
// line format, not an optimization: a literal backslash escapes to two
// and must come back out as one.
func collapseBackslashes(s string) string {
	if !strings.Contains(s, `\\`) {
		return s
	}
	return strings.ReplaceAll(s, `\\`, `\`)
}

func writeHex(b *strings.Builder, v uint32, width int) {
	for shift := (width - 1) * 4; shift >= 0; shift -= 4 {
		b.WriteByte(hexDigits[(v>>shift)&0xf])
	}
}

func parseHex(s string, start, n int) (uint32, bool) {
	if start+n > len(s) {
		return 0, false
	}
	var v uint32
	for i := start; i < start+n; i++ {
		c := s[i]
		var d uint32
		switch {
		case c >= '0' && c <= '9':
			d = uint32(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint32(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint32(c-'A') + 10
		default:
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

// isPrintableASCII reports whether every byte of s is in the printable
// ASCII range. Such strings are fixed points of Escape: even embedded
// backslashes double and then collapse back to themselves.
func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
