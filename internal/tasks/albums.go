package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
)

// Album save thresholds.
const (
	tinyAlbumTracks  = 3 // Never saved at or below this track count
	smallAlbumTracks = 6 // Needs every track listened at or below this count
	heavyPlayCount   = 3 // Plays for one track to count as heavy rotation
	heavyTrackCount  = 3 // Heavy tracks that qualify a larger album
)

// Listened-share rule for larger albums: at least 3/4 of the tracks.
const (
	listenShareNum = 3
	listenShareDen = 4
)

// albumFetchTimeout caps the track listing fetch for one album.
const albumFetchTimeout = 30 * time.Second

// variousArtists is the normalized compilation artist marker.
const variousArtists = "various artists"

// AlbumRunResult summarizes one album-saving run.
type AlbumRunResult struct {
	Considered int     // Distinct (artist, album) pairs in the listen window
	Saved      int     // Albums newly saved on the catalog
	Skipped    int     // Pairs that failed a criterion or were already saved
	Failed     int     // Pairs or batches that errored
	Errors     []error // Per-item and per-batch failures
}

// AlbumEngine saves albums the listener has engaged with deeply.
//
// Candidates are the distinct (artist, album) pairs played since the last
// run. Each is resolved on the catalog, its track listing fetched, and the
// save thresholds applied against play history before the album is saved.
type AlbumEngine struct {
	catalog      services.Catalog
	resolver     *match.Engine
	history      *repositories.HistoryRepository
	albums       *repositories.LibraryAlbumRepository
	meta         *repositories.MetadataRepository
	retry        services.RetryPolicy
	fetchTimeout time.Duration
}

// NewAlbumEngine creates an AlbumEngine with the default retry policy and
// per-album fetch timeout.
func NewAlbumEngine(catalog services.Catalog, resolver *match.Engine, history *repositories.HistoryRepository, albums *repositories.LibraryAlbumRepository, meta *repositories.MetadataRepository) *AlbumEngine {
	return &AlbumEngine{
		catalog:      catalog,
		resolver:     resolver,
		history:      history,
		albums:       albums,
		meta:         meta,
		retry:        services.DefaultRetryPolicy,
		fetchTimeout: albumFetchTimeout,
	}
}

// Run evaluates albums listened to since the previous run and saves the
// ones meeting the thresholds. The checkpoint only advances when the run
// completes, so an interrupted run re-evaluates its albums next time.
func (e *AlbumEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*AlbumRunResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: match engine not initialized", shared.ErrServiceUnavailable)
	}

	since, _, err := e.meta.GetTime(repositories.KeyAlbumsLastCheck)
	if err != nil {
		return nil, err
	}
	startedAt := time.Now().UTC()

	listens, err := e.history.AlbumsSince(since)
	if err != nil {
		return nil, err
	}

	result := &AlbumRunResult{Considered: len(listens)}

	type pending struct {
		remoteID string
		entry    *models.LibraryAlbum
	}
	var queue []pending

	for i, listen := range listens {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, scanAlbumUpdate(i+1, len(listens), listen.Artist, listen.Album))

		if listen.Artist == variousArtists {
			result.Skipped++
			continue
		}

		name := match.Normalize(listen.Album)
		if name == "" {
			result.Skipped++
			continue
		}

		saved, err := e.albums.FuzzyContains(name, listen.Artist)
		if err != nil {
			return result, err
		}
		if saved {
			result.Skipped++
			continue
		}

		remoteID, found, err := e.resolver.ResolveAlbum(ctx, listen.Album, listen.Artist)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrStorage) || ctx.Err() != nil {
				return result, err
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve album %q by %q: %w", listen.Album, listen.Artist, err))
			continue
		}
		if !found {
			result.Skipped++
			continue
		}

		has, err := e.albums.HasRemoteID(remoteID)
		if err != nil {
			return result, err
		}
		if has {
			result.Skipped++
			continue
		}

		tracks, err := e.fetchAlbumTracks(ctx, remoteID)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || ctx.Err() != nil {
				return result, err
			}
			// A slow or failing listing skips this album, not the run.
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("failed to fetch tracks for %q by %q: %w", listen.Album, listen.Artist, err))
			continue
		}

		listened, heavy, err := e.countListens(listen.Artist, tracks)
		if err != nil {
			return result, err
		}

		if !meetsSaveCriteria(len(tracks), listened, heavy) {
			result.Skipped++
			continue
		}

		queue = append(queue, pending{
			remoteID: remoteID,
			entry: &models.LibraryAlbum{
				RemoteID:   remoteID,
				Name:       name,
				Artist:     listen.Artist,
				TrackCount: len(tracks),
				AddedAt:    time.Now().UTC(),
			},
		})
	}

	for start := 0; start < len(queue); start += batchSize {
		end := min(start+batchSize, len(queue))
		batch := queue[start:end]

		ids := make([]string, len(batch))
		for i, item := range batch {
			ids[i] = item.remoteID
		}

		sendProgress(progress, saveBatchUpdate(end, len(queue)))

		err := e.retry.Do(ctx, func() error {
			return e.catalog.SaveAlbums(ctx, ids)
		})
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || ctx.Err() != nil {
				return result, err
			}
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Errorf("failed to save batch of %d albums: %w", len(batch), err))
			continue
		}

		for _, item := range batch {
			if err := e.albums.Upsert(item.entry); err != nil {
				return result, err
			}
		}
		result.Saved += len(batch)
	}

	if err := e.meta.SetTime(repositories.KeyAlbumsLastCheck, startedAt); err != nil {
		return result, err
	}

	return result, nil
}

// fetchAlbumTracks lists an album's tracks under the per-album time cap.
// The fetch runs in its own goroutine so a stalled listing cannot wedge
// the whole run.
func (e *AlbumEngine) fetchAlbumTracks(ctx context.Context, remoteID string) ([]models.CandidateTrack, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	type listing struct {
		tracks []models.CandidateTrack
		err    error
	}
	done := make(chan listing, 1)

	go func() {
		tracks, err := e.catalog.AlbumTracks(fetchCtx, remoteID)
		done <- listing{tracks: tracks, err: err}
	}()

	select {
	case res := <-done:
		return res.tracks, res.err
	case <-fetchCtx.Done():
		return nil, fetchCtx.Err()
	}
}

// countListens tallies how many album tracks appear in play history and how
// many of those reached heavy rotation.
func (e *AlbumEngine) countListens(artist string, tracks []models.CandidateTrack) (listened, heavy int, err error) {
	for _, track := range tracks {
		name := match.Normalize(track.Name)
		if name == "" {
			continue
		}

		row, err := e.history.GetByIdentity(artist, name)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, 0, err
		}

		listened++
		if row.ListenCount >= heavyPlayCount {
			heavy++
		}
	}

	return listened, heavy, nil
}

// meetsSaveCriteria applies the save thresholds to an album's listen
// profile. Tiny albums are never saved, small albums need every track
// listened, and larger albums need the listened share or enough
// heavy-rotation tracks.
func meetsSaveCriteria(total, listened, heavy int) bool {
	switch {
	case total <= tinyAlbumTracks:
		return false
	case total <= smallAlbumTracks:
		return listened == total
	default:
		return listened*listenShareDen >= total*listenShareNum || heavy >= heavyTrackCount
	}
}
