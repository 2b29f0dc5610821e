// Package services defines the remote surfaces the reconciliation engines
// run against and implements them for Spotify and Last.fm.
//
// # Interfaces
//
// [Catalog] is the music-service library surface: search, liked tracks,
// saved albums, and playlist writes. [ScrobbleSource] streams listening
// history. Engines depend on these interfaces so tests can substitute
// in-memory fakes.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token
// refresh. Refreshed tokens are surfaced through
// [SpotifyService.SetTokenRefreshCallback] so the CLI can persist them.
// Outgoing calls are paced by a client-side rate limiter; HTTP 429
// responses become [RateLimitError] values carrying the server-requested
// wait.
//
// # Last.fm Implementation
//
// [LastfmService] wraps the public user.getRecentTracks endpoint, walking
// pages newest-first and returning plays oldest-first. Last.fm needs no
// user token for reads, only an API key.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrAuthFailed] : not authenticated, or the API returned 401/403
//   - [shared.ErrNotFound] : the API returned 404
//   - [shared.ErrRateLimited] : the API returned 429 (via [RateLimitError])
//   - [shared.ErrInvalidCredentials] : construction with incomplete credentials
//
// [RetryPolicy] retries transient failures with exponential backoff and
// honors Retry-After on rate limit responses.
package services
