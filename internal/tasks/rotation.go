package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
)

// Rotation defaults applied when the config leaves them unset.
const (
	defaultPlaylistName = "Heavy Rotation"
	defaultRotationSize = 100
	defaultWindowDays   = 100
)

// RotationResult summarizes a heavy-rotation playlist build.
type RotationResult struct {
	Window     time.Time // Start of the listen window
	Candidates int       // History aggregates inside the window
	Resolved   int       // Candidates placed on the playlist
	Unmatched  int       // Candidates that resolved to nothing
	Failed     int       // Candidates whose resolution errored
	PlaylistID string
	Created    bool // Playlist was created during this run
	Errors     []error
}

// RotationEngine maintains a playlist of the most played recent tracks.
//
// The playlist is created once and its ID persisted; later runs replace its
// contents in full. A vanished playlist is recreated on the next run.
type RotationEngine struct {
	catalog  services.Catalog
	resolver *match.Engine
	history  *repositories.HistoryRepository
	meta     *repositories.MetadataRepository
	retry    services.RetryPolicy

	name       string
	size       int
	windowDays int
}

// NewRotationEngine creates a RotationEngine from rotation config, filling
// unset values with the defaults.
func NewRotationEngine(catalog services.Catalog, resolver *match.Engine, history *repositories.HistoryRepository, meta *repositories.MetadataRepository, cfg shared.RotationConfig) *RotationEngine {
	name := cfg.PlaylistName
	if name == "" {
		name = defaultPlaylistName
	}
	size := cfg.Size
	if size <= 0 {
		size = defaultRotationSize
	}
	days := cfg.WindowDays
	if days <= 0 {
		days = defaultWindowDays
	}

	return &RotationEngine{
		catalog:    catalog,
		resolver:   resolver,
		history:    history,
		meta:       meta,
		retry:      services.DefaultRetryPolicy,
		name:       name,
		size:       size,
		windowDays: days,
	}
}

// Run rebuilds the rotation playlist from the most played tracks of the
// listen window.
func (e *RotationEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RotationResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog service not initialized", shared.ErrServiceUnavailable)
	}
	if e.resolver == nil {
		return nil, fmt.Errorf("%w: match engine not initialized", shared.ErrServiceUnavailable)
	}

	window := time.Now().UTC().AddDate(0, 0, -e.windowDays)
	rows, err := e.history.TopPlayed(window, e.size)
	if err != nil {
		return nil, err
	}

	result := &RotationResult{Window: window, Candidates: len(rows)}

	var ids []string
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, resolveTrackUpdate(i+1, len(rows), row.Artist, row.Name))

		remoteID, found, err := e.resolver.Resolve(ctx, row.Name, row.Artist)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrStorage) || ctx.Err() != nil {
				return result, err
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve %q by %q: %w", row.Name, row.Artist, err))
			continue
		}
		if !found {
			result.Unmatched++
			continue
		}

		ids = append(ids, remoteID)
		result.Resolved++
	}

	playlistID, err := e.meta.Get(repositories.KeyRotationPlaylistID)
	if err != nil {
		return result, err
	}
	if playlistID == "" {
		playlistID, err = e.createPlaylist(ctx)
		if err != nil {
			return result, err
		}
		result.Created = true
	}
	result.PlaylistID = playlistID

	sendProgress(progress, buildRotationUpdate(len(ids), e.name))

	err = e.retry.Do(ctx, func() error {
		return e.catalog.ReplacePlaylistTracks(ctx, playlistID, ids)
	})
	if errors.Is(err, shared.ErrNotFound) {
		// The persisted playlist vanished remotely; build a fresh one.
		playlistID, err = e.createPlaylist(ctx)
		if err != nil {
			return result, err
		}
		result.Created = true
		result.PlaylistID = playlistID

		err = e.retry.Do(ctx, func() error {
			return e.catalog.ReplacePlaylistTracks(ctx, playlistID, ids)
		})
	}
	if err != nil {
		return result, fmt.Errorf("failed to replace playlist tracks: %w", err)
	}

	return result, nil
}

// createPlaylist creates the rotation playlist and persists its ID.
func (e *RotationEngine) createPlaylist(ctx context.Context) (string, error) {
	description := fmt.Sprintf("Most played tracks of the last %d days", e.windowDays)

	id, err := e.catalog.CreatePlaylist(ctx, e.name, description)
	if err != nil {
		return "", fmt.Errorf("failed to create playlist %q: %w", e.name, err)
	}

	if err := e.meta.Set(repositories.KeyRotationPlaylistID, id); err != nil {
		return "", err
	}

	return id, nil
}
