package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spinsapp/spins/internal/server"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// AuthSpotify performs the OAuth2 authorization flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthSpotify(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = r.configPath
	}

	config := r.config
	if config == nil {
		var err error
		if _, statErr := os.Stat(configPath); statErr == nil {
			config, err = shared.LoadConfig(configPath)
			if err != nil {
				r.logger.Warnf("failed to load config, using defaults %v", err)
				config = shared.DefaultConfig()
			}
		} else {
			config = shared.DefaultConfig()
		}
		config.LoadEnvOverrides()
	}

	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrInvalidCredentials, configPath)
	}

	spotifyService, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(config, spotifyService, "authorization")
	if err != nil {
		return err
	}

	if err := config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.config = config
	r.configPath = configPath

	if err := spotifyService.OAuthenticate(ctx, token); err == nil {
		r.catalog = spotifyService
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now use: spins sync\n")

	return nil
}

// AuthStatus reports credential and token state for both services.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify
	lastfm := r.config.Credentials.Lastfm

	r.writePlain("Spotify\n")
	if spotify.ClientID != "" && spotify.ClientSecret != "" {
		r.writePlain("  ✓ Client credentials configured\n")
	} else {
		r.writePlain("  ✗ Client credentials missing (edit config.toml or set SPOTIFY_CLIENT_ID)\n")
	}

	token := spotify.Token()
	switch {
	case token == nil:
		r.writePlain("  ✗ No saved token (run 'spins auth spotify')\n")
	case !token.Expiry.IsZero() && token.Expiry.Before(time.Now()) && token.RefreshToken == "":
		r.writePlain("  ⚠ Token expired %s with no refresh token\n", token.Expiry.Format(time.RFC3339))
	case !token.Expiry.IsZero() && token.Expiry.Before(time.Now()):
		r.writePlain("  ⚠ Token expired %s, will refresh on next use\n", token.Expiry.Format(time.RFC3339))
	default:
		r.writePlain("  ✓ Token saved\n")
	}

	if sp, ok := r.catalog.(*services.SpotifyService); ok && token != nil {
		if profile, err := sp.UserProfile(ctx); err != nil {
			r.writePlain("  ⚠ Profile check failed: %v\n", err)
		} else {
			r.writePlain("  ✓ Authenticated as %s\n", profile.DisplayName)
		}
	}

	r.writePlain("Last.fm\n")
	if lastfm.APIKey != "" {
		r.writePlain("  ✓ API key configured\n")
	} else {
		r.writePlain("  ✗ API key missing (edit config.toml or set LASTFM_API_KEY)\n")
	}
	if lastfm.Username != "" {
		r.writePlain("  ✓ Scrobbles read for %s\n", lastfm.Username)
	} else {
		r.writePlain("  ✗ Username not set\n")
	}

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(config *shared.Config, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server for %s at %v", prefix, serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
