package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
)

// Cache kinds keep track and album resolutions apart in the search cache so
// a title track never shadows its album.
const (
	KindTrack = "track"
	KindAlbum = "album"
)

// trackSearchLimit bounds the candidate set fetched per query formulation.
const trackSearchLimit = 10

// albumSearchLimit bounds the candidate set for album resolution.
const albumSearchLimit = 5

// ResolutionCache is the search-cache surface the engine consults before any
// network search. An empty remoteID marks a cached negative.
type ResolutionCache interface {
	Lookup(kind, name, artist string) (remoteID string, cached bool, err error)
	Store(kind, name, artist, remoteID string) error
}

// Searcher is the catalog surface the engine queries for candidates.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error)
	SearchAlbums(ctx context.Context, query string, limit int) ([]models.CandidateAlbum, error)
}

// UnfoundRecorder audits identities whose resolution ended in not-found.
type UnfoundRecorder interface {
	Record(name, artist string) error
}

// Engine resolves track and album identities to catalog IDs using the search
// cache, query formulations, and fuzzy scoring. Every resolution outcome is
// cached, so each identity triggers at most one network search sequence.
type Engine struct {
	cache   ResolutionCache
	catalog Searcher
	unfound UnfoundRecorder
}

// NewEngine creates a match engine over the given cache, catalog, and
// unfound audit. The audit may be nil when no recording is wanted.
func NewEngine(cache ResolutionCache, catalog Searcher, unfound UnfoundRecorder) *Engine {
	return &Engine{cache: cache, catalog: catalog, unfound: unfound}
}

// Resolve maps a track identity to a catalog ID. The inputs are normalized
// before use; identities with an empty normalized side are unmatchable and
// return not-found without touching cache or network.
//
// Resolution order: cache, then query formulations from most to least
// specific, scoring every candidate per formulation and accepting the best
// above the threshold. A completed search with no match is cached as a
// negative and recorded in the unfound audit; a search that errored is not
// cached, so the next run retries it.
func (e *Engine) Resolve(ctx context.Context, name, artist string) (string, bool, error) {
	name, artist = Normalize(name), Normalize(artist)
	if name == "" || artist == "" {
		return "", false, nil
	}

	if remoteID, cached, err := e.cache.Lookup(KindTrack, name, artist); err != nil {
		return "", false, fmt.Errorf("%w: cache lookup: %v", shared.ErrStorage, err)
	} else if cached {
		return remoteID, remoteID != "", nil
	}

	queries := []string{
		fmt.Sprintf("track:%s artist:%s", name, artist),
		fmt.Sprintf("track:%s", name),
		fmt.Sprintf("%s %s", name, artist),
	}

	var searchErr error
	for _, query := range queries {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}

		candidates, err := e.catalog.SearchTracks(ctx, query, trackSearchLimit)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) {
				return "", false, err
			}
			searchErr = err
			continue
		}

		if remoteID := bestTrackMatch(candidates, name, artist); remoteID != "" {
			if err := e.cache.Store(KindTrack, name, artist, remoteID); err != nil {
				return "", false, fmt.Errorf("%w: cache store: %v", shared.ErrStorage, err)
			}
			return remoteID, true, nil
		}
	}

	if searchErr != nil {
		// At least one formulation never completed; leave the identity
		// uncached so a later run can retry.
		return "", false, fmt.Errorf("search failed for %q by %q: %w", name, artist, searchErr)
	}

	if err := e.cache.Store(KindTrack, name, artist, ""); err != nil {
		return "", false, fmt.Errorf("%w: cache store: %v", shared.ErrStorage, err)
	}
	if e.unfound != nil {
		if err := e.unfound.Record(name, artist); err != nil {
			return "", false, fmt.Errorf("%w: unfound audit: %v", shared.ErrStorage, err)
		}
	}
	return "", false, nil
}

// ResolveAlbum maps an album identity to a catalog ID using a single
// album-scoped query formulation. Outcomes are cached under the album kind.
func (e *Engine) ResolveAlbum(ctx context.Context, name, artist string) (string, bool, error) {
	name, artist = Normalize(name), Normalize(artist)
	if name == "" || artist == "" {
		return "", false, nil
	}

	if remoteID, cached, err := e.cache.Lookup(KindAlbum, name, artist); err != nil {
		return "", false, fmt.Errorf("%w: cache lookup: %v", shared.ErrStorage, err)
	} else if cached {
		return remoteID, remoteID != "", nil
	}

	query := fmt.Sprintf("album:%s artist:%s", name, artist)
	candidates, err := e.catalog.SearchAlbums(ctx, query, albumSearchLimit)
	if err != nil {
		return "", false, fmt.Errorf("album search failed for %q by %q: %w", name, artist, err)
	}

	remoteID := bestAlbumMatch(candidates, name, artist)
	if err := e.cache.Store(KindAlbum, name, artist, remoteID); err != nil {
		return "", false, fmt.Errorf("%w: cache store: %v", shared.ErrStorage, err)
	}
	return remoteID, remoteID != "", nil
}

// bestTrackMatch scores every candidate against the target identity and
// returns the single best above the threshold, or empty. Equal top scores
// keep the earlier candidate, accepting the remote's ranking.
func bestTrackMatch(candidates []models.CandidateTrack, name, artist string) string {
	bestID, bestScore := "", 0
	for _, candidate := range candidates {
		candidateName, candidateArtist := Normalize(candidate.Name), Normalize(candidate.Artist)
		if candidateName == "" || candidateArtist == "" {
			continue
		}
		score := FieldMatch(Score(name, candidateName), Score(artist, candidateArtist))
		if score > bestScore {
			bestScore = score
			bestID = candidate.RemoteID
		}
	}
	if bestScore > MatchThreshold {
		return bestID
	}
	return ""
}

// bestAlbumMatch is the album variant of bestTrackMatch.
func bestAlbumMatch(candidates []models.CandidateAlbum, name, artist string) string {
	bestID, bestScore := "", 0
	for _, candidate := range candidates {
		candidateName, candidateArtist := Normalize(candidate.Name), Normalize(candidate.Artist)
		if candidateName == "" || candidateArtist == "" {
			continue
		}
		score := FieldMatch(Score(name, candidateName), Score(artist, candidateArtist))
		if score > bestScore {
			bestScore = score
			bestID = candidate.RemoteID
		}
	}
	if bestScore > MatchThreshold {
		return bestID
	}
	return ""
}
