// package match implements string normalization, token-sort fuzzy scoring,
// and the cache-backed engine that resolves track identities to catalog IDs.
package match

import (
	"regexp"
	"strings"

	"github.com/spinsapp/spins/internal/models"
)

var (
	bracketed    = regexp.MustCompile(`\s*[\(\[\{].*?[\)\]\}]`)
	versionWords = regexp.MustCompile(`\b(remastered|live|acoustic|mono|stereo|version|edit|feat\.?|featuring|from|remix)\b(\s+\d{4})?`)
	punctuation  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Normalize maps a raw title, artist, or album string to its canonical
// comparison key. Pure, deterministic, and idempotent.
//
// Pipeline: lower-case, strip bracketed segments, remove version keywords
// (with an optional trailing year), strip punctuation, collapse whitespace.
//
// A string that normalizes to empty (e.g. "(Live)") is unmatchable:
// consumers must guard against empty keys and never treat them as wildcards.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = bracketed.ReplaceAllString(s, "")
	s = versionWords.ReplaceAllString(s, "")
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Identity builds the normalized identity pair for a track. ok is false when
// either side normalizes to empty, which makes the track unmatchable.
func Identity(artist, name string) (models.TrackIdentity, bool) {
	id := models.TrackIdentity{Artist: Normalize(artist), Name: Normalize(name)}
	return id, id.Artist != "" && id.Name != ""
}
