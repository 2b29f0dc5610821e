package services

import (
	"context"
	"time"

	"github.com/spinsapp/spins/internal/models"
	"golang.org/x/oauth2"
)

// Catalog is the music-service library surface: search, liked tracks, saved
// albums, and playlist writes. All batch operations are capped at the
// service's documented limits; callers chunk accordingly.
type Catalog interface {
	// SearchTracks runs a track search and returns up to limit candidates.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error)

	// SearchAlbums runs an album search and returns up to limit candidates.
	SearchAlbums(ctx context.Context, query string, limit int) ([]models.CandidateAlbum, error)

	// LikedTracks returns one page of the user's liked tracks and the
	// library's total size.
	LikedTracks(ctx context.Context, limit, offset int) ([]models.CandidateTrack, int, error)

	// SavedAlbums returns one page of the user's saved albums and the
	// library's total size.
	SavedAlbums(ctx context.Context, limit, offset int) ([]models.CandidateAlbum, int, error)

	// LikeTracks adds up to 50 tracks to the user's liked library.
	LikeTracks(ctx context.Context, remoteIDs []string) error

	// RemoveLikedTracks removes up to 50 tracks from the liked library.
	RemoveLikedTracks(ctx context.Context, remoteIDs []string) error

	// SaveAlbums adds up to 50 albums to the user's saved library.
	SaveAlbums(ctx context.Context, remoteIDs []string) error

	// RemoveSavedAlbums removes up to 50 albums from the saved library.
	RemoveSavedAlbums(ctx context.Context, remoteIDs []string) error

	// AreTracksLiked reports membership for up to 50 tracks, positionally.
	AreTracksLiked(ctx context.Context, remoteIDs []string) ([]bool, error)

	// Album fetches a single album by catalog ID.
	Album(ctx context.Context, remoteID string) (*models.CandidateAlbum, error)

	// AlbumTracks fetches the full track listing of an album.
	AlbumTracks(ctx context.Context, remoteID string) ([]models.CandidateTrack, error)

	// CreatePlaylist creates a private playlist and returns its catalog ID.
	CreatePlaylist(ctx context.Context, name, description string) (string, error)

	// ReplacePlaylistTracks replaces the playlist's contents with the given
	// tracks, preserving order.
	ReplacePlaylistTracks(ctx context.Context, playlistID string, remoteIDs []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// ScrobbleSource streams listening history.
type ScrobbleSource interface {
	// RecentPlays returns every play after from, oldest first. A zero from
	// returns the full available history.
	RecentPlays(ctx context.Context, from time.Time) ([]models.PlayEvent, error)
}

// OAuthService is implemented by services that authenticate through an
// OAuth2 authorization-code flow.
type OAuthService interface {
	// GetAuthURL returns the authorization URL for user login.
	GetAuthURL(state string) string

	// GetOAuthConfig exposes the OAuth2 configuration for the callback flow.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate installs a previously obtained token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
