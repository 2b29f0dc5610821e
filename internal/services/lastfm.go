// Last.fm implementation of [ScrobbleSource]
package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shkh/lastfm-go/lastfm"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
)

// recentTracksPageSize is the maximum page size user.getRecentTracks allows.
const recentTracksPageSize = 200

// LastfmService implements [ScrobbleSource] against the Last.fm API.
type LastfmService struct {
	api      *lastfm.Api
	username string
}

// NewLastfmService creates a new Last.fm service instance
func NewLastfmService(apiKey, apiSecret, username string) (*LastfmService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing api_key", shared.ErrInvalidCredentials)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: missing username", shared.ErrInvalidCredentials)
	}

	return &LastfmService{
		api:      lastfm.New(apiKey, apiSecret),
		username: username,
	}, nil
}

// Name returns the name of the service
func (s *LastfmService) Name() string {
	return "Last.fm"
}

// RecentPlays returns every play after from, oldest first. A zero from walks
// the full available history. Now-playing rows carry no timestamp and are
// skipped.
func (s *LastfmService) RecentPlays(ctx context.Context, from time.Time) ([]models.PlayEvent, error) {
	var plays []models.PlayEvent

	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		args := lastfm.P{
			"user":  s.username,
			"limit": recentTracksPageSize,
			"page":  page,
		}
		if !from.IsZero() {
			// The API treats from as exclusive: strictly after this time.
			args["from"] = from.Unix()
		}

		result, err := s.api.User.GetRecentTracks(args)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recent tracks page %d: %w", page, err)
		}

		for _, track := range result.Tracks {
			if track.NowPlaying == "true" {
				continue
			}

			uts, err := strconv.ParseInt(track.Date.Uts, 10, 64)
			if err != nil {
				continue
			}

			plays = append(plays, models.PlayEvent{
				Artist:   track.Artist.Name,
				Name:     track.Name,
				Album:    track.Album.Name,
				PlayedAt: time.Unix(uts, 0).UTC(),
				MBID:     track.Mbid,
			})
		}

		if result.TotalPages == 0 || page >= result.TotalPages || len(result.Tracks) == 0 {
			break
		}
		page++
	}

	// Pages arrive newest first; play aggregation wants oldest first.
	for i, j := 0, len(plays)-1; i < j; i, j = i+1, j-1 {
		plays[i], plays[j] = plays[j], plays[i]
	}

	return plays, nil
}
