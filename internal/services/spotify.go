// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// maxBatchIDs is the per-request cap on library batch endpoints.
	maxBatchIDs = 50

	// maxPlaylistChunk is the per-request cap on playlist track writes.
	maxPlaylistChunk = 100

	// requestsPerSecond paces outgoing calls under Spotify's rolling rate
	// window.
	requestsPerSecond rate.Limit = 10
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents an artist credited on a track or album.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents an album object.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Images      []SpotifyImage  `json:"images"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
}

// SpotifyTrack represents a track object.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	URI string `json:"uri"`
}

// SpotifySavedTrack pairs a track with the time it was liked.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifySavedAlbum pairs an album with the time it was saved.
type SpotifySavedAlbum struct {
	AddedAt string       `json:"added_at"`
	Album   SpotifyAlbum `json:"album"`
}

// SpotifyService implements [Catalog] and [OAuthService] against the
// Spotify Web API.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service instance
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrInvalidCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrInvalidCredentials)
	}

	redirectURL := credentials["redirect_uri"]
	if redirectURL == "" {
		redirectURL = "http://127.0.0.1:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-library-read",
			"user-library-modify",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(requestsPerSecond, 1),
	}, nil
}

// Name returns the name of the service
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the Spotify authorization URL for user login
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 configuration for the callback flow
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// SetTokenRefreshCallback registers a function invoked whenever the access
// token is refreshed, so the new token can be persisted.
func (s *SpotifyService) SetTokenRefreshCallback(callback func(*oauth2.Token)) {
	s.onTokenRefresh = callback
}

// OAuthenticate installs a previously obtained token and switches the
// service to an auto-refreshing HTTP client.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}

	s.token = token
	source := &refreshableTokenSource{
		source: s.config.TokenSource(ctx, token),
		callback: func(refreshed *oauth2.Token) {
			s.token = refreshed
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(refreshed)
			}
		},
	}
	s.httpClient = oauth2.NewClient(ctx, source)

	return nil
}

// refreshableTokenSource wraps an [oauth2.TokenSource] and invokes a
// callback whenever the access token changes.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	current  *oauth2.Token
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	if r.callback != nil && (r.current == nil || r.current.AccessToken != token.AccessToken) {
		r.callback(token)
	}
	r.current = token

	return token, nil
}

// doRequest makes an authenticated request to the Spotify API
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.token == nil || s.token.AccessToken == "" {
		return fmt.Errorf("%w: not authenticated", shared.ErrAuthFailed)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, spotifyBaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
		case http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: retryAfterDelay(resp)}
		}

		var detail struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil && detail.Error.Message != "" {
			return fmt.Errorf("%w (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, detail.Error.Message)
		}

		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// retryAfterDelay parses the Retry-After header, defaulting to one second
func retryAfterDelay(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}

// UserProfile fetches the current user's profile
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &user, nil
}

// SearchTracks runs a track search and returns up to limit candidates
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxBatchIDs {
		limit = maxBatchIDs
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)
	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]models.CandidateTrack, 0, len(response.Tracks.Items))
	for _, track := range response.Tracks.Items {
		candidates = append(candidates, candidateFromTrack(track))
	}

	return candidates, nil
}

// SearchAlbums runs an album search and returns up to limit candidates
func (s *SpotifyService) SearchAlbums(ctx context.Context, query string, limit int) ([]models.CandidateAlbum, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxBatchIDs {
		limit = maxBatchIDs
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=album&limit=%d", url.QueryEscape(query), limit)
	var response struct {
		Albums struct {
			Items []SpotifyAlbum `json:"items"`
		} `json:"albums"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]models.CandidateAlbum, 0, len(response.Albums.Items))
	for _, album := range response.Albums.Items {
		candidates = append(candidates, candidateFromAlbum(album))
	}

	return candidates, nil
}

// LikedTracks returns one page of the user's liked tracks and the library's
// total size.
func (s *SpotifyService) LikedTracks(ctx context.Context, limit, offset int) ([]models.CandidateTrack, int, error) {
	if limit <= 0 || limit > maxBatchIDs {
		limit = maxBatchIDs
	}
	if offset < 0 {
		offset = 0
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)
	var response struct {
		Items []SpotifySavedTrack `json:"items"`
		Total int                 `json:"total"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, 0, err
	}

	candidates := make([]models.CandidateTrack, 0, len(response.Items))
	for _, saved := range response.Items {
		candidate := candidateFromTrack(saved.Track)
		candidate.AddedAt = parseAddedAt(saved.AddedAt)
		candidates = append(candidates, candidate)
	}

	return candidates, response.Total, nil
}

// SavedAlbums returns one page of the user's saved albums and the library's
// total size.
func (s *SpotifyService) SavedAlbums(ctx context.Context, limit, offset int) ([]models.CandidateAlbum, int, error) {
	if limit <= 0 || limit > maxBatchIDs {
		limit = maxBatchIDs
	}
	if offset < 0 {
		offset = 0
	}

	endpoint := fmt.Sprintf("/me/albums?limit=%d&offset=%d", limit, offset)
	var response struct {
		Items []SpotifySavedAlbum `json:"items"`
		Total int                 `json:"total"`
	}
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, 0, err
	}

	candidates := make([]models.CandidateAlbum, 0, len(response.Items))
	for _, saved := range response.Items {
		candidate := candidateFromAlbum(saved.Album)
		candidate.AddedAt = parseAddedAt(saved.AddedAt)
		candidates = append(candidates, candidate)
	}

	return candidates, response.Total, nil
}

// LikeTracks adds up to 50 tracks to the user's liked library
func (s *SpotifyService) LikeTracks(ctx context.Context, remoteIDs []string) error {
	if err := checkBatch(remoteIDs); err != nil {
		return err
	}
	return s.doRequest(ctx, http.MethodPut, "/me/tracks", map[string][]string{"ids": remoteIDs}, nil)
}

// RemoveLikedTracks removes up to 50 tracks from the liked library
func (s *SpotifyService) RemoveLikedTracks(ctx context.Context, remoteIDs []string) error {
	if err := checkBatch(remoteIDs); err != nil {
		return err
	}
	return s.doRequest(ctx, http.MethodDelete, "/me/tracks", map[string][]string{"ids": remoteIDs}, nil)
}

// SaveAlbums adds up to 50 albums to the user's saved library
func (s *SpotifyService) SaveAlbums(ctx context.Context, remoteIDs []string) error {
	if err := checkBatch(remoteIDs); err != nil {
		return err
	}
	return s.doRequest(ctx, http.MethodPut, "/me/albums", map[string][]string{"ids": remoteIDs}, nil)
}

// RemoveSavedAlbums removes up to 50 albums from the saved library
func (s *SpotifyService) RemoveSavedAlbums(ctx context.Context, remoteIDs []string) error {
	if err := checkBatch(remoteIDs); err != nil {
		return err
	}
	return s.doRequest(ctx, http.MethodDelete, "/me/albums", map[string][]string{"ids": remoteIDs}, nil)
}

// AreTracksLiked reports membership for up to 50 tracks, positionally
func (s *SpotifyService) AreTracksLiked(ctx context.Context, remoteIDs []string) ([]bool, error) {
	if err := checkBatch(remoteIDs); err != nil {
		return nil, err
	}

	endpoint := "/me/tracks/contains?ids=" + url.QueryEscape(strings.Join(remoteIDs, ","))
	var flags []bool
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &flags); err != nil {
		return nil, err
	}
	if len(flags) != len(remoteIDs) {
		return nil, fmt.Errorf("contains check returned %d results for %d tracks", len(flags), len(remoteIDs))
	}

	return flags, nil
}

// Album fetches a single album by catalog ID
func (s *SpotifyService) Album(ctx context.Context, remoteID string) (*models.CandidateAlbum, error) {
	var album SpotifyAlbum
	endpoint := "/albums/" + url.PathEscape(remoteID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &album); err != nil {
		return nil, err
	}

	candidate := candidateFromAlbum(album)
	return &candidate, nil
}

// AlbumTracks fetches the full track listing of an album
func (s *SpotifyService) AlbumTracks(ctx context.Context, remoteID string) ([]models.CandidateTrack, error) {
	var tracks []models.CandidateTrack
	limit, offset := maxBatchIDs, 0

	for {
		endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d&offset=%d", url.PathEscape(remoteID), limit, offset)
		var response struct {
			Items []SpotifyTrack `json:"items"`
			Next  *string        `json:"next"`
		}
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, track := range response.Items {
			candidate := candidateFromTrack(track)
			// Album track listings omit the album object.
			candidate.AlbumID = remoteID
			tracks = append(tracks, candidate)
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// CreatePlaylist creates a private playlist and returns its catalog ID
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}
	var response struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &response); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	return response.ID, nil
}

// ReplacePlaylistTracks replaces the playlist's contents with the given
// tracks. The replace endpoint accepts at most 100 URIs per request; any
// remainder is appended in order.
func (s *SpotifyService) ReplacePlaylistTracks(ctx context.Context, playlistID string, remoteIDs []string) error {
	uris := make([]string, len(remoteIDs))
	for i, id := range remoteIDs {
		uris[i] = "spotify:track:" + id
	}

	first := uris
	if len(first) > maxPlaylistChunk {
		first = uris[:maxPlaylistChunk]
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodPut, endpoint, map[string]any{"uris": first}, nil); err != nil {
		return fmt.Errorf("failed to replace playlist tracks: %w", err)
	}

	for offset := maxPlaylistChunk; offset < len(uris); offset += maxPlaylistChunk {
		end := min(offset+maxPlaylistChunk, len(uris))
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris[offset:end]}, nil); err != nil {
			return fmt.Errorf("failed to append playlist tracks: %w", err)
		}
	}

	return nil
}

// checkBatch validates a batch of IDs against the service cap
func checkBatch(remoteIDs []string) error {
	if len(remoteIDs) == 0 {
		return fmt.Errorf("no IDs provided")
	}
	if len(remoteIDs) > maxBatchIDs {
		return fmt.Errorf("maximum %d IDs allowed per request, got %d", maxBatchIDs, len(remoteIDs))
	}
	return nil
}

// candidateFromTrack converts an API track object into a match candidate
func candidateFromTrack(track SpotifyTrack) models.CandidateTrack {
	candidate := models.CandidateTrack{
		RemoteID: track.ID,
		Name:     track.Name,
		Album:    track.Album.Name,
		AlbumID:  track.Album.ID,
	}
	if len(track.Artists) > 0 {
		candidate.Artist = track.Artists[0].Name
	}
	return candidate
}

// candidateFromAlbum converts an API album object into a match candidate
func candidateFromAlbum(album SpotifyAlbum) models.CandidateAlbum {
	candidate := models.CandidateAlbum{
		RemoteID:   album.ID,
		Name:       album.Name,
		TrackCount: album.TotalTracks,
	}
	if len(album.Artists) > 0 {
		candidate.Artist = album.Artists[0].Name
	}
	return candidate
}

// parseAddedAt parses the API's RFC3339 added_at stamps, zero when absent
func parseAddedAt(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
