package detection

import (
	"strings"
	"unicode/utf8"
)

// minComparableLength is the trimmed rune length below which titles never match.
const minComparableLength = 3

// Similarity scores how alike two ticket titles are, in [0,1].
//
// Titles shorter than three characters after trimming score 0, even against
// themselves. Otherwise an exact case-insensitive match scores 1 and anything
// else scores the Jaccard index of the two lower-cased word sets.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if utf8.RuneCountInString(a) < minComparableLength || utf8.RuneCountInString(b) < minComparableLength {
		return 0
	}
	if a == b {
		return 1
	}

	wordsA := wordSet(a)
	wordsB := wordSet(b)

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}

	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
