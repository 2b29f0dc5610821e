package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
)

// SyncResult summarizes a library synchronization run.
type SyncResult struct {
	Full         bool // Whole library walked instead of newest-first delta
	TracksSeen   int  // Liked tracks walked
	TracksSynced int  // Liked tracks written to the index
	AlbumsSeen   int  // Saved albums walked
	AlbumsSynced int  // Saved albums written to the index
}

// LibrarySyncEngine mirrors the remote library into the local index.
type LibrarySyncEngine struct {
	catalog services.Catalog
	tracks  *repositories.LibraryTrackRepository
	albums  *repositories.LibraryAlbumRepository
	meta    *repositories.MetadataRepository
}

// NewLibrarySyncEngine creates a LibrarySyncEngine over the given catalog
// and index repositories.
func NewLibrarySyncEngine(catalog services.Catalog, tracks *repositories.LibraryTrackRepository, albums *repositories.LibraryAlbumRepository, meta *repositories.MetadataRepository) *LibrarySyncEngine {
	return &LibrarySyncEngine{
		catalog: catalog,
		tracks:  tracks,
		albums:  albums,
		meta:    meta,
	}
}

// Run synchronizes the index with the remote library. The first run is
// always full; later runs walk newest-first and stop at the checkpoint
// unless full forces a complete walk.
func (e *LibrarySyncEngine) Run(ctx context.Context, full bool, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}

	lastUpdate, ok, err := e.meta.GetTime(repositories.KeyLibraryLastUpdate)
	if err != nil {
		return nil, err
	}

	if full || !ok {
		return e.fullSync(ctx, progress)
	}
	return e.incrementalSync(ctx, lastUpdate, progress)
}

func (e *LibrarySyncEngine) fullSync(ctx context.Context, progress chan<- ProgressUpdate) (*SyncResult, error) {
	result := &SyncResult{Full: true}
	startedAt := time.Now().UTC()

	offset := 0
	for {
		page, total, err := e.catalog.LikedTracks(ctx, libraryPageSize, offset)
		if err != nil {
			return result, fmt.Errorf("failed to fetch liked tracks: %w", err)
		}

		for _, candidate := range page {
			result.TracksSeen++
			synced, err := e.indexTrack(candidate)
			if err != nil {
				return result, err
			}
			if synced {
				result.TracksSynced++
			}
		}
		sendProgress(progress, syncTracksUpdate(result.TracksSeen, total))

		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	offset = 0
	for {
		page, total, err := e.catalog.SavedAlbums(ctx, libraryPageSize, offset)
		if err != nil {
			return result, fmt.Errorf("failed to fetch saved albums: %w", err)
		}

		for _, candidate := range page {
			result.AlbumsSeen++
			synced, err := e.indexAlbum(candidate)
			if err != nil {
				return result, err
			}
			if synced {
				result.AlbumsSynced++
			}
		}
		sendProgress(progress, syncAlbumsUpdate(result.AlbumsSeen, total))

		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	// The checkpoint predates the walk so entries added mid-sync are seen
	// again by the next incremental run.
	if err := e.meta.SetTime(repositories.KeyLibraryLastUpdate, startedAt); err != nil {
		return result, err
	}

	return result, nil
}

// incrementalSync walks newest-first and stops at the first entry already
// covered by the checkpoint. Correct only while the remote returns entries
// in descending added_at order.
func (e *LibrarySyncEngine) incrementalSync(ctx context.Context, lastUpdate time.Time, progress chan<- ProgressUpdate) (*SyncResult, error) {
	result := &SyncResult{}
	startedAt := time.Now().UTC()

	offset, caughtUp := 0, false
	for !caughtUp {
		page, total, err := e.catalog.LikedTracks(ctx, libraryPageSize, offset)
		if err != nil {
			return result, fmt.Errorf("failed to fetch liked tracks: %w", err)
		}

		for _, candidate := range page {
			if !candidate.AddedAt.After(lastUpdate) {
				caughtUp = true
				break
			}
			result.TracksSeen++
			synced, err := e.indexTrack(candidate)
			if err != nil {
				return result, err
			}
			if synced {
				result.TracksSynced++
			}
		}
		sendProgress(progress, syncTracksUpdate(result.TracksSeen, total))

		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	offset, caughtUp = 0, false
	for !caughtUp {
		page, total, err := e.catalog.SavedAlbums(ctx, libraryPageSize, offset)
		if err != nil {
			return result, fmt.Errorf("failed to fetch saved albums: %w", err)
		}

		for _, candidate := range page {
			if !candidate.AddedAt.After(lastUpdate) {
				caughtUp = true
				break
			}
			result.AlbumsSeen++
			synced, err := e.indexAlbum(candidate)
			if err != nil {
				return result, err
			}
			if synced {
				result.AlbumsSynced++
			}
		}
		sendProgress(progress, syncAlbumsUpdate(result.AlbumsSeen, total))

		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	if err := e.meta.SetTime(repositories.KeyLibraryLastUpdate, startedAt); err != nil {
		return result, err
	}

	return result, nil
}

// indexTrack upserts one liked track into the index under its normalized
// identity. Entries with no usable identity or remote ID are not indexed.
func (e *LibrarySyncEngine) indexTrack(candidate models.CandidateTrack) (bool, error) {
	if candidate.RemoteID == "" {
		return false, nil
	}
	identity, ok := match.Identity(candidate.Artist, candidate.Name)
	if !ok {
		return false, nil
	}

	track := &models.LibraryTrack{
		RemoteID: candidate.RemoteID,
		Name:     identity.Name,
		Artist:   identity.Artist,
		Album:    candidate.Album,
		AddedAt:  candidate.AddedAt,
	}
	if err := e.tracks.Upsert(track); err != nil {
		return false, fmt.Errorf("failed to index liked track: %w", err)
	}

	return true, nil
}

// indexAlbum upserts one saved album into the index under its normalized
// identity.
func (e *LibrarySyncEngine) indexAlbum(candidate models.CandidateAlbum) (bool, error) {
	if candidate.RemoteID == "" {
		return false, nil
	}
	name := match.Normalize(candidate.Name)
	artist := match.Normalize(candidate.Artist)
	if name == "" || artist == "" {
		return false, nil
	}

	album := &models.LibraryAlbum{
		RemoteID:   candidate.RemoteID,
		Name:       name,
		Artist:     artist,
		TrackCount: candidate.TrackCount,
		AddedAt:    candidate.AddedAt,
	}
	if err := e.albums.Upsert(album); err != nil {
		return false, fmt.Errorf("failed to index saved album: %w", err)
	}

	return true, nil
}
