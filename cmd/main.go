package main

import (
	"context"
	"errors"
	"os"

	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// defaultConfigPath is where the CLI looks for configuration unless a
// command's --config flag says otherwise.
const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(defaultConfigPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(defaultConfigPath); err == nil {
			config = loadedConfig
		}
	}
	config.LoadEnvOverrides()

	var catalog services.Catalog
	var source services.ScrobbleSource
	var spotifyService *services.SpotifyService

	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		if svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map()); err == nil {
			if token := config.Credentials.Spotify.Token(); token != nil {
				if err := svc.OAuthenticate(context.Background(), token); err != nil {
					logger.Warnf("failed to install saved token: %v", err)
				}
			}
			spotifyService = svc
			catalog = svc
		}
	}

	if config.Credentials.Lastfm.APIKey != "" && config.Credentials.Lastfm.Username != "" {
		if svc, err := services.NewLastfmService(
			config.Credentials.Lastfm.APIKey,
			config.Credentials.Lastfm.APISecret,
			config.Credentials.Lastfm.Username,
		); err == nil {
			source = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: defaultConfigPath,
		Catalog:    catalog,
		Source:     source,
		Logger:     logger,
	})

	if spotifyService != nil {
		spotifyService.SetTokenRefreshCallback(func(token *oauth2.Token) {
			if err := runner.saveTokens(token); err != nil {
				logger.Warnf("failed to persist refreshed token: %v", err)
			}
		})
	}

	app := &cli.Command{
		Name:     "spins",
		Usage:    "Reconcile Last.fm listening history with a Spotify library",
		Version:  "0.4.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}
