package textmatch

import (
	"strings"
	"unicode"
)

// Normalize collapses every whitespace run to a single space and trims the
// result. Stored annotation text and freshly rendered page text rarely agree
// on whitespace, so all matching happens in this normalized space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// significantPrefix returns the first three words longer than 3 characters,
// joined by single spaces. Used as the degraded search string when the full
// normalized text cannot be found verbatim.
func significantPrefix(normalized string) string {
	var picked []string
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) > 3 {
			picked = append(picked, w)
			if len(picked) == 3 {
				break
			}
		}
	}
	return strings.Join(picked, " ")
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r)
}
