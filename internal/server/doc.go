// Package server provides HTTP routing and OAuth callback handling for CLI authentication flows.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing over [http.ServeMux] with method filtering.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When the user runs 'spins auth spotify', a temporary HTTP server starts on the configured host and port,
// handles the callback on the redirect URI's path, and shuts down after delivering the OAuth token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
