// Package textmatch holds the string similarity helpers used by order search.
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Distance returns the Levenshtein edit distance between a and b.
// Comparison is case-sensitive and rune based.
func Distance(a, b string) int {
	return fuzzy.LevenshteinDistance(a, b)
}

// Similarity returns 1 - Distance(a, b) / max(len(a), len(b)), in [0, 1].
// An empty input on either side scores 0.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	return 1 - float64(Distance(a, b))/float64(max(la, lb))
}

// Tokenize lowercases s, drops punctuation and symbols other than '-' and '/'
// (date fragments rely on both), and splits on whitespace. Order and
// duplicates are preserved.
func Tokenize(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r == '-' || r == '/' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Fields(b.String())
}
