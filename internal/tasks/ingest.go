package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Since    time.Time // Checkpoint the fetch started from (zero on first run)
	Fetched  int       // Plays fetched from the scrobble source
	Recorded int       // Plays folded into history aggregates
	Skipped  int       // Plays dropped for an unusable identity
}

// IngestEngine pulls recent plays from the scrobble source and folds them
// into the play history.
type IngestEngine struct {
	source  services.ScrobbleSource
	history *repositories.HistoryRepository
}

// NewIngestEngine creates an IngestEngine over the given source and store.
func NewIngestEngine(source services.ScrobbleSource, history *repositories.HistoryRepository) *IngestEngine {
	return &IngestEngine{
		source:  source,
		history: history,
	}
}

// Run fetches every play after the last recorded listen and upserts the
// aggregates. Re-runs resume from the newest recorded play, so ingestion is
// idempotent across interruptions.
func (e *IngestEngine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*IngestResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: scrobble source not initialized", shared.ErrServiceUnavailable)
	}
	if e.history == nil {
		return nil, fmt.Errorf("%w: history store not initialized", shared.ErrServiceUnavailable)
	}

	since, _, err := e.history.LastListenTime()
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Since: since}
	sendProgress(progress, fetchPlaysUpdate(since))

	plays, err := e.source.RecentPlays(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent plays: %w", err)
	}
	result.Fetched = len(plays)

	// Fold all plays of one identity into a single upsert.
	groups := groupByIdentity(plays, func(play models.PlayEvent) (models.TrackIdentity, bool) {
		return match.Identity(play.Artist, play.Name)
	})

	grouped := 0
	for _, group := range groups {
		grouped += len(group)
	}
	result.Skipped = result.Fetched - grouped

	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, recordPlaysUpdate(i+1, len(groups)))

		identity, _ := match.Identity(group[0].Artist, group[0].Name)

		var album string
		var last time.Time
		for _, play := range group {
			if album == "" {
				album = play.Album
			}
			if play.PlayedAt.After(last) {
				last = play.PlayedAt
			}
		}

		if _, err := e.history.Upsert(identity.Artist, identity.Name, album, len(group), last); err != nil {
			return result, fmt.Errorf("failed to record plays for %q by %q: %w", identity.Name, identity.Artist, err)
		}
		result.Recorded += len(group)
	}

	return result, nil
}
