package units

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// foldCaser is a package-level Unicode case folder for performance.
// This avoids creating a new caser for each string comparison.
var foldCaser = cases.Fold()

// similarity computes a normalized similarity score between two strings
// using Levenshtein edit distance. Returns a value in [0.0, 1.0] where
// 1.0 means identical (after case folding). The engine uses it to report
// how far a clarified answer moved from the initial one.
func similarity(a, b string) float64 {
	a = foldCaser.String(a)
	b = foldCaser.String(b)
	if a == b {
		return 1.0
	}

	distance := levenshtein.ComputeDistance(a, b)

	// Distance operates on runes, so normalize by rune count rather
	// than byte length for multi-byte UTF-8 input.
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	s := 1.0 - float64(distance)/float64(maxLen)
	if s < 0 {
		s = 0
	}
	return s
}
