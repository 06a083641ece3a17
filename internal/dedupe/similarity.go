package dedupe

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize case-folds s, composes it to NFC and collapses runs of whitespace.
func Normalize(s string) string {
	s = norm.NFC.String(folder.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// Similarity scores two strings in [0,1] as 1 - distance/maxLen over their
// normalized runes. Two empty strings score 1. When one string contains the
// other the score is at least substringScore.
func Similarity(a, b string, substringScore float64) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	score := 1 - float64(Levenshtein(ra, rb))/float64(longest)

	if a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a)) && score < substringScore {
		score = substringScore
	}
	return score
}

// Levenshtein returns the edit distance between a and b using two rolling rows.
func Levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
