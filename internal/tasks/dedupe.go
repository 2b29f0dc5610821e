package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
)

// remasterMarker flags the catalog entry to keep when duplicates differ
// only by edition.
const remasterMarker = "remaster"

// TrackDuplicateGroup is a set of liked tracks sharing one normalized
// identity.
type TrackDuplicateGroup struct {
	Identity models.TrackIdentity
	Survivor models.CandidateTrack
	Remove   []models.CandidateTrack
}

// AlbumDuplicateGroup is a set of saved albums sharing one normalized
// identity. Identity.Name holds the normalized album title.
type AlbumDuplicateGroup struct {
	Identity models.TrackIdentity
	Survivor models.CandidateAlbum
	Remove   []models.CandidateAlbum
}

// DedupeResult summarizes a deduplication run over tracks or albums.
type DedupeResult struct {
	DryRun      bool    // Removals reported but not executed
	Scanned     int     // Library entries walked
	Groups      int     // Identities with more than one entry
	Removed     int     // Entries removed from the catalog
	Failed      int     // Entries whose removal batch errored
	TrackGroups []TrackDuplicateGroup
	AlbumGroups []AlbumDuplicateGroup
	Errors      []error
}

// DedupeEngine finds and removes duplicate liked tracks and saved albums.
//
// Entries are grouped by normalized identity; each group keeps one survivor
// and removes the rest. The engine never mutates survivors, and a dry run
// reports the groups without touching the catalog.
type DedupeEngine struct {
	catalog services.Catalog
	tracks  *repositories.LibraryTrackRepository
	albums  *repositories.LibraryAlbumRepository
	retry   services.RetryPolicy
}

// NewDedupeEngine creates a DedupeEngine with the default retry policy.
func NewDedupeEngine(catalog services.Catalog, tracks *repositories.LibraryTrackRepository, albums *repositories.LibraryAlbumRepository) *DedupeEngine {
	return &DedupeEngine{
		catalog: catalog,
		tracks:  tracks,
		albums:  albums,
		retry:   services.DefaultRetryPolicy,
	}
}

// DedupeTracks removes duplicate liked tracks. Survivors are chosen by
// remaster marker, then largest album, then library order.
func (e *DedupeEngine) DedupeTracks(ctx context.Context, dryRun bool, progress chan<- ProgressUpdate) (*DedupeResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	entries, err := e.allLikedTracks(ctx)
	if err != nil {
		return nil, err
	}

	result := &DedupeResult{DryRun: dryRun, Scanned: len(entries)}
	sendProgress(progress, scanLibraryUpdate("tracks", len(entries)))

	groups := groupByIdentity(entries, func(c models.CandidateTrack) (models.TrackIdentity, bool) {
		return match.Identity(c.Artist, c.Name)
	})

	albumSizes := make(map[string]int)
	var removeIDs []string
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		survivor := e.pickTrackSurvivor(ctx, group, albumSizes)
		identity, _ := match.Identity(group[0].Artist, group[0].Name)

		dup := TrackDuplicateGroup{Identity: identity, Survivor: group[survivor]}
		for i, entry := range group {
			if i == survivor {
				continue
			}
			dup.Remove = append(dup.Remove, entry)
			removeIDs = append(removeIDs, entry.RemoteID)
		}
		result.TrackGroups = append(result.TrackGroups, dup)
	}
	result.Groups = len(result.TrackGroups)

	if dryRun {
		return result, nil
	}

	batches := batchIDs(removeIDs, batchSize)
	for i, batch := range batches {
		sendProgress(progress, removeBatchUpdate(i+1, len(batches)))

		err := e.retry.Do(ctx, func() error {
			return e.catalog.RemoveLikedTracks(ctx, batch)
		})
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || ctx.Err() != nil {
				return result, err
			}
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Errorf("failed to remove batch of %d tracks: %w", len(batch), err))
			continue
		}

		for _, id := range batch {
			if err := e.tracks.DeleteByRemoteID(id); err != nil {
				return result, err
			}
		}
		result.Removed += len(batch)
	}

	return result, nil
}

// DedupeAlbums removes duplicate saved albums. Survivors are chosen by
// liked-track overlap, then earliest save time, then library order.
func (e *DedupeEngine) DedupeAlbums(ctx context.Context, dryRun bool, progress chan<- ProgressUpdate) (*DedupeResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	entries, err := e.allSavedAlbums(ctx)
	if err != nil {
		return nil, err
	}

	result := &DedupeResult{DryRun: dryRun, Scanned: len(entries)}
	sendProgress(progress, scanLibraryUpdate("albums", len(entries)))

	groups := groupByIdentity(entries, func(c models.CandidateAlbum) (models.TrackIdentity, bool) {
		artist := match.Normalize(c.Artist)
		name := match.Normalize(c.Name)
		if artist == "" || name == "" {
			return models.TrackIdentity{}, false
		}
		return models.TrackIdentity{Artist: artist, Name: name}, true
	})

	var removeIDs []string
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		survivor := e.pickAlbumSurvivor(ctx, group)
		artist := match.Normalize(group[0].Artist)
		name := match.Normalize(group[0].Name)

		dup := AlbumDuplicateGroup{
			Identity: models.TrackIdentity{Artist: artist, Name: name},
			Survivor: group[survivor],
		}
		for i, entry := range group {
			if i == survivor {
				continue
			}
			dup.Remove = append(dup.Remove, entry)
			removeIDs = append(removeIDs, entry.RemoteID)
		}
		result.AlbumGroups = append(result.AlbumGroups, dup)
	}
	result.Groups = len(result.AlbumGroups)

	if dryRun {
		return result, nil
	}

	batches := batchIDs(removeIDs, batchSize)
	for i, batch := range batches {
		sendProgress(progress, removeBatchUpdate(i+1, len(batches)))

		err := e.retry.Do(ctx, func() error {
			return e.catalog.RemoveSavedAlbums(ctx, batch)
		})
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || ctx.Err() != nil {
				return result, err
			}
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Errorf("failed to remove batch of %d albums: %w", len(batch), err))
			continue
		}

		for _, id := range batch {
			if err := e.albums.DeleteByRemoteID(id); err != nil {
				return result, err
			}
		}
		result.Removed += len(batch)
	}

	return result, nil
}

// allLikedTracks pages through the full liked-tracks listing.
func (e *DedupeEngine) allLikedTracks(ctx context.Context) ([]models.CandidateTrack, error) {
	var entries []models.CandidateTrack
	offset := 0
	for {
		page, total, err := e.catalog.LikedTracks(ctx, libraryPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch liked tracks: %w", err)
		}
		entries = append(entries, page...)

		offset += len(page)
		if len(page) == 0 || offset >= total {
			return entries, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// allSavedAlbums pages through the full saved-albums listing.
func (e *DedupeEngine) allSavedAlbums(ctx context.Context) ([]models.CandidateAlbum, error) {
	var entries []models.CandidateAlbum
	offset := 0
	for {
		page, total, err := e.catalog.SavedAlbums(ctx, libraryPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch saved albums: %w", err)
		}
		entries = append(entries, page...)

		offset += len(page)
		if len(page) == 0 || offset >= total {
			return entries, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// pickTrackSurvivor returns the index of the entry to keep: the first whose
// raw name carries a remaster marker, else the entry on the largest album,
// else the first entry.
func (e *DedupeEngine) pickTrackSurvivor(ctx context.Context, group []models.CandidateTrack, albumSizes map[string]int) int {
	for i, entry := range group {
		if strings.Contains(strings.ToLower(entry.Name), remasterMarker) {
			return i
		}
	}

	best := 0
	bestSize := e.albumSize(ctx, group[0].AlbumID, albumSizes)
	for i := 1; i < len(group); i++ {
		if size := e.albumSize(ctx, group[i].AlbumID, albumSizes); size > bestSize {
			best, bestSize = i, size
		}
	}

	return best
}

// albumSize reports an album's total track count, memoized per run.
// Lookup failures count as zero.
func (e *DedupeEngine) albumSize(ctx context.Context, albumID string, cache map[string]int) int {
	if albumID == "" {
		return 0
	}
	if size, ok := cache[albumID]; ok {
		return size
	}

	size := 0
	if album, err := e.catalog.Album(ctx, albumID); err == nil {
		size = album.TrackCount
	}
	cache[albumID] = size

	return size
}

// pickAlbumSurvivor returns the index of the entry to keep: the copy with
// the most liked tracks, ties broken by earliest save time, then order.
func (e *DedupeEngine) pickAlbumSurvivor(ctx context.Context, group []models.CandidateAlbum) int {
	overlaps := make([]int, len(group))
	for i, entry := range group {
		overlaps[i] = e.likedOverlap(ctx, entry.RemoteID)
	}

	best := 0
	for i := 1; i < len(group); i++ {
		switch {
		case overlaps[i] > overlaps[best]:
			best = i
		case overlaps[i] == overlaps[best] && group[i].AddedAt.Before(group[best].AddedAt):
			best = i
		}
	}

	return best
}

// likedOverlap counts how many of an album's tracks are in the liked index.
// Listing failures count as zero.
func (e *DedupeEngine) likedOverlap(ctx context.Context, albumID string) int {
	tracks, err := e.catalog.AlbumTracks(ctx, albumID)
	if err != nil {
		return 0
	}

	overlap := 0
	for _, track := range tracks {
		if liked, err := e.tracks.HasRemoteID(track.RemoteID); err == nil && liked {
			overlap++
		}
	}

	return overlap
}
