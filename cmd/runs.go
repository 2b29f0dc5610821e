package main

import (
	"context"
	"fmt"

	"github.com/spinsapp/spins/internal/formatter"
	"github.com/spinsapp/spins/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Ingest fetches recent scrobbles and folds them into the play history.
func (r *Runner) Ingest(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}
	if err := r.setFormat(cmd); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	return r.ingest(ctx, st)
}

// Sync mirrors the remote library into the local index.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCatalog(); err != nil {
		return err
	}
	if err := r.setFormat(cmd); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	engine := tasks.NewLibrarySyncEngine(r.catalog, st.tracks, st.albums, st.meta)

	var result *tasks.SyncResult
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = engine.Run(ctx, cmd.Bool("full"), progress)
		return runErr
	})

	if result != nil {
		title := "Library sync"
		if result.Full {
			title = "Library sync (full)"
		}
		summary := formatter.NewSummary(title)
		summary.Add("tracks seen", result.TracksSeen)
		summary.Add("tracks indexed", result.TracksSynced)
		summary.Add("albums seen", result.AlbumsSeen)
		summary.Add("albums indexed", result.AlbumsSynced)
		if total, err := st.tracks.Count(); err == nil {
			summary.Add("index tracks", total)
		}
		if total, err := st.albums.Count(); err == nil {
			summary.Add("index albums", total)
		}
		r.writeSummary(summary)
	}

	return err
}

// Like saves tracks that crossed the play-count threshold to the library.
func (r *Runner) Like(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCatalog(); err != nil {
		return err
	}
	if err := r.setFormat(cmd); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	return r.like(ctx, st, r.minPlays(cmd))
}

// Albums saves albums that qualify by play depth and breadth.
func (r *Runner) Albums(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCatalog(); err != nil {
		return err
	}
	if err := r.setFormat(cmd); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	return r.albums(ctx, st)
}

// Rotation rebuilds the heavy-rotation playlist from recent plays.
func (r *Runner) Rotation(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCatalog(); err != nil {
		return err
	}
	if err := r.setFormat(cmd); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	return r.rotation(ctx, st)
}

// RunAll chains ingest, like, albums, and rotation over one store. The
// sequence stops at the first failing step.
func (r *Runner) RunAll(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSource(); err != nil {
		return err
	}
	if err := r.requireCatalog(); err != nil {
		return err
	}
	if err := r.setFormat(cmd); err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r.writePlainHeader("Scrobble ingest")
	if err := r.ingest(ctx, st); err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	r.writePlainHeader("Track likes")
	if err := r.like(ctx, st, r.minPlays(cmd)); err != nil {
		return fmt.Errorf("like run failed: %w", err)
	}

	r.writePlainHeader("Album saves")
	if err := r.albums(ctx, st); err != nil {
		return fmt.Errorf("album run failed: %w", err)
	}

	r.writePlainHeader("Heavy rotation")
	if err := r.rotation(ctx, st); err != nil {
		return fmt.Errorf("rotation failed: %w", err)
	}

	return nil
}

func (r *Runner) ingest(ctx context.Context, st *store) error {
	engine := tasks.NewIngestEngine(r.source, st.history)

	var result *tasks.IngestResult
	err := r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = engine.Run(ctx, progress)
		return runErr
	})

	if result != nil {
		summary := formatter.NewSummary("Scrobble ingest")
		summary.Add("fetched", result.Fetched)
		summary.Add("recorded", result.Recorded)
		summary.Add("skipped", result.Skipped)
		if total, err := st.history.Count(); err == nil {
			summary.Add("tracked", total)
		}
		r.writeSummary(summary)
	}

	return err
}

func (r *Runner) like(ctx context.Context, st *store, minPlays int) error {
	engine := tasks.NewLikerEngine(r.catalog, st.resolver, st.history, st.tracks)

	var result *tasks.LikerResult
	err := r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = engine.Run(ctx, minPlays, progress)
		return runErr
	})

	if result != nil {
		summary := formatter.NewSummary(fmt.Sprintf("Track likes (>= %d plays)", minPlays))
		summary.Add("candidates", result.Candidates)
		summary.Add("liked", result.Liked)
		summary.Add("already liked", result.AlreadyLiked)
		summary.Add("unmatched", result.Unmatched)
		summary.Add("failed", result.Failed)
		r.writeSummary(summary)
		r.logErrors(result.Errors)
	}

	return err
}

func (r *Runner) albums(ctx context.Context, st *store) error {
	engine := tasks.NewAlbumEngine(r.catalog, st.resolver, st.history, st.albums, st.meta)

	var result *tasks.AlbumRunResult
	err := r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = engine.Run(ctx, progress)
		return runErr
	})

	if result != nil {
		summary := formatter.NewSummary("Album saves")
		summary.Add("considered", result.Considered)
		summary.Add("saved", result.Saved)
		summary.Add("skipped", result.Skipped)
		summary.Add("failed", result.Failed)
		r.writeSummary(summary)
		r.logErrors(result.Errors)
	}

	return err
}

func (r *Runner) rotation(ctx context.Context, st *store) error {
	engine := tasks.NewRotationEngine(r.catalog, st.resolver, st.history, st.meta, r.config.Rotation)

	var result *tasks.RotationResult
	err := r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		result, runErr = engine.Run(ctx, progress)
		return runErr
	})

	if result != nil {
		summary := formatter.NewSummary("Heavy rotation")
		summary.Add("window start", result.Window.Format("2006-01-02"))
		summary.Add("candidates", result.Candidates)
		summary.Add("placed", result.Resolved)
		summary.Add("unmatched", result.Unmatched)
		summary.Add("failed", result.Failed)
		if result.PlaylistID != "" {
			summary.Add("playlist", result.PlaylistID)
		}
		if result.Created {
			summary.Add("created", "yes")
		}
		r.writeSummary(summary)
		r.logErrors(result.Errors)
	}

	return err
}

// writeSummary renders a run summary in the runner's format and writes it to
// the output. An unset format renders as text.
func (r *Runner) writeSummary(summary formatter.Summary) {
	var data []byte
	var err error

	switch r.format {
	case formatter.FormatJSON:
		if err := r.writeJSON(summary, true); err != nil {
			r.logger.Warn("failed to render summary", "error", err)
		}
		return
	case formatter.FormatCSV:
		data, err = formatter.SummaryToCSV(summary)
	case formatter.FormatMarkdown:
		data, err = formatter.SummaryToMarkdown(summary)
	default:
		data, err = formatter.SummaryToText(summary)
	}
	if err != nil {
		r.logger.Warn("failed to render summary", "error", err)
		return
	}

	r.writePlain("%s", data)
}

// logErrors surfaces per-item failures collected during a run.
func (r *Runner) logErrors(errs []error) {
	for _, err := range errs {
		r.logger.Warn("item failed", "error", err)
	}
}
