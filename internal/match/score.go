package match

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// MatchThreshold is the minimum FieldMatch for accepting a search candidate.
const MatchThreshold = 80

// StrongThreshold is the per-field minimum used when checking whether a
// track already exists in the library index.
const StrongThreshold = 90

// Score returns a similarity ratio in [0, 100] between two strings,
// insensitive to token order: tokens are sorted before comparison so
// "Jude Hey" and "Hey Jude" score 100.
func Score(a, b string) int {
	return RatioScore(tokenSort(a), tokenSort(b))
}

// RatioScore returns the plain edit-distance similarity ratio in [0, 100]
// without token reordering.
func RatioScore(a, b string) int {
	if a == b {
		return 100
	}
	similarity, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return int(similarity * 100)
}

// FieldMatch combines name and artist scores into a single match score.
func FieldMatch(nameScore, artistScore int) int {
	return (nameScore + artistScore) / 2
}

// tokenSort rearranges whitespace-separated tokens into sorted order so word
// order does not affect similarity.
func tokenSort(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
