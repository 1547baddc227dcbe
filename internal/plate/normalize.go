package plate

import (
	"strings"
)

// Normalize trims s, drops every character other than ASCII letters, digits
// and '-', and upper-cases the result.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WireFormat returns the plate text as the backend expects it: normalized,
// letters and digits only.
func WireFormat(s string) string {
	return strings.ReplaceAll(Normalize(s), "-", "")
}

func isLetter(r rune) bool { return r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
