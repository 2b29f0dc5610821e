// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// summaryFormatFlag selects the encoding for a command's closing summary.
func summaryFormatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Summary format: csv, json, md, or text",
		Value:   "text",
	}
}

// setupCommand initializes configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file, initialize the database, and run migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "spotify",
				Usage: "Authenticate with Spotify using OAuth2",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.AuthSpotify,
			},
			{
				Name:   "status",
				Usage:  "Show credential and token state for both services",
				Action: r.AuthStatus,
			},
		},
	}
}

// ingestCommand pulls new scrobbles into the local play history.
func ingestCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "ingest",
		Usage:  "Fetch recent Last.fm scrobbles and record play counts",
		Flags:  []cli.Flag{summaryFormatFlag()},
		Action: r.Ingest,
	}
}

// syncCommand refreshes the local index of the Spotify library.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Index saved Spotify tracks and albums locally",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Rebuild the index from scratch instead of syncing incrementally",
			},
			summaryFormatFlag(),
		},
		Action: r.Sync,
	}
}

// likeCommand saves frequently played tracks to the Spotify library.
func likeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "like",
		Usage: "Like tracks that crossed the play-count threshold",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-plays",
				Usage: "Play-count threshold (defaults to rules.min_play_count)",
			},
			summaryFormatFlag(),
		},
		Action: r.Like,
	}
}

// albumsCommand saves albums that qualify by listening history.
func albumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "albums",
		Usage:  "Save albums whose tracks were played often and broadly enough",
		Flags:  []cli.Flag{summaryFormatFlag()},
		Action: r.Albums,
	}
}

// dedupeCommand removes duplicate saves from the Spotify library.
func dedupeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dedupe",
		Usage: "Remove duplicate tracks or albums from the library",
		Commands: []*cli.Command{
			{
				Name:  "tracks",
				Usage: "Collapse duplicate liked tracks to a single copy",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report duplicate groups without removing anything",
					},
					summaryFormatFlag(),
				},
				Action: r.DedupeTracks,
			},
			{
				Name:  "albums",
				Usage: "Collapse duplicate saved albums to a single copy",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report duplicate groups without removing anything",
					},
					summaryFormatFlag(),
				},
				Action: r.DedupeAlbums,
			},
		},
	}
}

// rotationCommand rebuilds the heavy-rotation playlist.
func rotationCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "rotation",
		Usage:  "Rebuild the heavy-rotation playlist from recent plays",
		Flags:  []cli.Flag{summaryFormatFlag()},
		Action: r.Rotation,
	}
}

// runCommand chains the everyday commands into one invocation.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the full sequence: ingest, like, albums, rotation",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-plays",
				Usage: "Play-count threshold (defaults to rules.min_play_count)",
			},
			summaryFormatFlag(),
		},
		Action: r.RunAll,
	}
}

// reportCommand renders audit data for inspection or export.
func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Render reports from the local database",
		Commands: []*cli.Command{
			{
				Name:  "unfound",
				Usage: "List tracks that never matched anything on Spotify",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: csv, json, md, or text",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Clear the audit table after rendering",
					},
				},
				Action: r.ReportUnfound,
			},
		},
	}
}

// cacheCommand manages the search-resolution cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage cached search resolutions",
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Clear cached search resolutions",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "negative",
						Usage: "Clear only cached not-found results",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive liking.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Review and like frequently played tracks interactively",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-plays",
				Usage: "Play-count threshold (defaults to rules.min_play_count)",
			},
		},
		Action: r.TUI,
	}
}
