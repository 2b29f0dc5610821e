package main

import (
	"context"
	"fmt"

	"github.com/spinsapp/spins/internal/formatter"
	"github.com/spinsapp/spins/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DedupeTracks collapses duplicate liked tracks to a single copy.
func (r *Runner) DedupeTracks(ctx context.Context, cmd *cli.Command) error {
	return r.dedupe(ctx, cmd, "tracks")
}

// DedupeAlbums collapses duplicate saved albums to a single copy.
func (r *Runner) DedupeAlbums(ctx context.Context, cmd *cli.Command) error {
	return r.dedupe(ctx, cmd, "albums")
}

func (r *Runner) dedupe(ctx context.Context, cmd *cli.Command, kind string) error {
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

	dryRun := cmd.Bool("dry-run")
	engine := tasks.NewDedupeEngine(r.catalog, st.tracks, st.albums)

	var result *tasks.DedupeResult
	err = r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
		var runErr error
		switch kind {
		case "albums":
			result, runErr = engine.DedupeAlbums(ctx, dryRun, progress)
		default:
			result, runErr = engine.DedupeTracks(ctx, dryRun, progress)
		}
		return runErr
	})

	if result != nil {
		r.printDuplicateGroups(result)

		title := fmt.Sprintf("Dedupe %s", kind)
		if result.DryRun {
			title += " (dry run)"
		}
		summary := formatter.NewSummary(title)
		summary.Add("scanned", result.Scanned)
		summary.Add("duplicate groups", result.Groups)
		summary.Add("removed", result.Removed)
		summary.Add("failed", result.Failed)
		r.writeSummary(summary)
		r.logErrors(result.Errors)
	}

	return err
}

func (r *Runner) printDuplicateGroups(result *tasks.DedupeResult) {
	for _, group := range result.TrackGroups {
		r.writePlain("\n%s - %s\n", group.Identity.Artist, group.Identity.Name)
		r.writePlain("  keep   %s (%s)\n", group.Survivor.Name, group.Survivor.RemoteID)
		for _, track := range group.Remove {
			r.writePlain("  remove %s (%s)\n", track.Name, track.RemoteID)
		}
	}
	for _, group := range result.AlbumGroups {
		r.writePlain("\n%s - %s\n", group.Identity.Artist, group.Identity.Name)
		r.writePlain("  keep   %s (%s)\n", group.Survivor.Name, group.Survivor.RemoteID)
		for _, album := range group.Remove {
			r.writePlain("  remove %s (%s)\n", album.Name, album.RemoteID)
		}
	}
}
