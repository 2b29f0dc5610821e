package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spinsapp/spins/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, initializes the database, and
// runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}
	config.LoadEnvOverrides()

	dbPath, err := config.DatabasePath()
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}

	r.logger.Info("initializing database", "path", dbPath)

	db, err := shared.NewDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.config = config
	r.configPath = configPath

	r.writePlain("✓ Database ready at %s\n", dbPath)
	r.writePlain("✓ Config at %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials.spotify and credentials.lastfm in %s\n", configPath)
	r.writePlain("2. Run 'spins auth spotify' to authorize the Spotify client\n")
	r.writePlain("3. Run 'spins ingest' to pull your listening history\n")

	return nil
}
