package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// CacheClear empties the search-resolution cache. With --negative only the
// cached not-found results are dropped, forcing those identities to be
// searched again on the next run.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if cmd.Bool("negative") {
		cleared, err := st.searches.ClearNegative()
		if err != nil {
			return fmt.Errorf("failed to clear negative cache entries: %w", err)
		}
		r.writePlain("✓ Cleared %d cached not-found results\n", cleared)
		if total, _, err := st.searches.Count(); err == nil {
			r.writePlain("%d resolutions kept\n", total)
		}
		return nil
	}

	cleared, err := st.searches.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear search cache: %w", err)
	}
	r.writePlain("✓ Cleared %d cached resolutions\n", cleared)

	return nil
}
