// Package textx provides small text utilities used across the project.
package textx

import (
	"strings"
	"unicode"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// CollapseSpace replaces every run of whitespace with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Snippet returns about radius bytes of context on each side of s[start:end].
// Edges are widened to the enclosing word (by at most radius bytes more), then
// to a rune boundary, and trimmed.
func Snippet(s string, start, end, radius int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(s) {
		hi = len(s)
	}
	for n := 0; n < radius && lo > 0 && !isSpaceByte(s[lo-1]) && !isSpaceByte(s[lo]); n++ {
		lo--
	}
	for n := 0; n < radius && hi < len(s) && !isSpaceByte(s[hi-1]) && !isSpaceByte(s[hi]); n++ {
		hi++
	}
	for lo > 0 && !isRuneStart(s[lo]) {
		lo--
	}
	for hi < len(s) && !isRuneStart(s[hi]) {
		hi++
	}
	return strings.TrimFunc(CollapseSpace(s[lo:hi]), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '$' && r != '%')
	})
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

func isSpaceByte(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
