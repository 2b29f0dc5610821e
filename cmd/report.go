package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spinsapp/spins/internal/formatter"
	"github.com/urfave/cli/v3"
)

// ReportUnfound renders the audit of identities that never matched anything
// on the catalog, optionally writing the report to a file and clearing the
// audit afterwards.
func (r *Runner) ReportUnfound(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tracks, err := st.unfound.List()
	if err != nil {
		return fmt.Errorf("failed to list unfound tracks: %w", err)
	}

	data, err := formatter.RenderUnfound(tracks, format)
	if err != nil {
		return err
	}

	if outputPath := cmd.String("output"); outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		r.writePlain("✓ Report written to %s (%d tracks)\n", outputPath, len(tracks))
	} else {
		r.writePlain("%s", data)
	}

	if cmd.Bool("clear") {
		cleared, err := st.unfound.Clear()
		if err != nil {
			return fmt.Errorf("failed to clear audit: %w", err)
		}
		r.writePlain("✓ Cleared %d audit rows\n", cleared)
	}

	return nil
}
