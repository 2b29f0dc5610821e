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

// LikerResult summarizes one track-liking run.
type LikerResult struct {
	Candidates   int     // History aggregates that met the play threshold
	Liked        int     // Tracks newly liked on the catalog
	AlreadyLiked int     // Candidates the library index already covered
	Unmatched    int     // Candidates that resolved to nothing
	Failed       int     // Candidates or batches that errored and will retry next run
	Errors       []error // Per-item and per-batch failures
}

// LikerEngine likes frequently played tracks on the catalog.
//
// Candidates come from unprocessed history aggregates at or above the play
// threshold. Each is checked against the local library index, resolved
// through the match engine, and liked in batches. Aggregates are marked
// processed once their outcome is final; failures stay unprocessed so the
// next run retries them.
type LikerEngine struct {
	catalog  services.Catalog
	resolver *match.Engine
	history  *repositories.HistoryRepository
	library  *repositories.LibraryTrackRepository
	retry    services.RetryPolicy
}

// NewLikerEngine creates a LikerEngine with the default retry policy.
func NewLikerEngine(catalog services.Catalog, resolver *match.Engine, history *repositories.HistoryRepository, library *repositories.LibraryTrackRepository) *LikerEngine {
	return &LikerEngine{
		catalog:  catalog,
		resolver: resolver,
		history:  history,
		library:  library,
		retry:    services.DefaultRetryPolicy,
	}
}

// Run likes every unprocessed track with at least minPlays plays. The
// returned result is valid even when an error cuts the run short.
func (e *LikerEngine) Run(ctx context.Context, minPlays int, progress chan<- ProgressUpdate) (*LikerResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: match engine not initialized", shared.ErrServiceUnavailable)
	}

	rows, err := e.history.FrequentlyPlayed(minPlays)
	if err != nil {
		return nil, err
	}

	result := &LikerResult{Candidates: len(rows)}

	type resolved struct {
		row      *models.HistoryTrack
		remoteID string
	}
	var queue []resolved

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, resolveTrackUpdate(i+1, len(rows), row.Artist, row.Name))

		known, err := e.library.ContainsByIdentity(row.Name, row.Artist)
		if err != nil {
			return result, err
		}
		if !known {
			known, err = e.library.FuzzyContains(row.Name, row.Artist)
			if err != nil {
				return result, err
			}
		}
		if known {
			if err := e.history.MarkProcessed(row.ID()); err != nil {
				return result, err
			}
			result.AlreadyLiked++
			continue
		}

		remoteID, found, err := e.resolver.Resolve(ctx, row.Name, row.Artist)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrStorage) || ctx.Err() != nil {
				return result, err
			}
			// The aggregate stays unprocessed so the next run retries it.
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve %q by %q: %w", row.Name, row.Artist, err))
			continue
		}
		if !found {
			if err := e.history.MarkProcessed(row.ID()); err != nil {
				return result, err
			}
			result.Unmatched++
			continue
		}

		queue = append(queue, resolved{row: row, remoteID: remoteID})
	}

	for start := 0; start < len(queue); start += batchSize {
		end := min(start+batchSize, len(queue))
		batch := queue[start:end]

		ids := make([]string, len(batch))
		for i, item := range batch {
			ids[i] = item.remoteID
		}

		sendProgress(progress, likeBatchUpdate(end, len(queue)))

		err := e.retry.Do(ctx, func() error {
			return e.catalog.LikeTracks(ctx, ids)
		})
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || ctx.Err() != nil {
				return result, err
			}
			result.Failed += len(batch)
			result.Errors = append(result.Errors, fmt.Errorf("failed to like batch of %d tracks: %w", len(batch), err))
			continue
		}

		for _, item := range batch {
			if err := e.history.MarkProcessed(item.row.ID()); err != nil {
				return result, err
			}
			track := &models.LibraryTrack{
				RemoteID: item.remoteID,
				Name:     item.row.Name,
				Artist:   item.row.Artist,
				Album:    item.row.Album,
				AddedAt:  time.Now().UTC(),
			}
			if err := e.library.Upsert(track); err != nil {
				return result, err
			}
		}
		result.Liked += len(batch)
	}

	return result, nil
}
