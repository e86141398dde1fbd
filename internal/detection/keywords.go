package detection

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minKeywordLength = 4

// wordPattern matches maximal runs of letters, digits and underscores, so every
// match is bounded by a word boundary on both sides. Letters are Unicode-aware
// so Polish words such as "hasło" stay whole.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// ExtractKeywords returns the distinct lower-cased words of text that are at
// least four characters long and not stop words, in order of first appearance.
func ExtractKeywords(text string, stopWords WordSet) []string {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if utf8.RuneCountInString(token) < minKeywordLength {
			continue
		}
		if stopWords.Contains(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}
	return keywords
}
