package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/shared"
)

func TestMeetsSaveCriteria(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		listened int
		heavy    int
		want     bool
	}{
		{"empty listing", 0, 0, 0, false},
		{"single never saved", 1, 1, 1, false},
		{"three tracks never saved", 3, 3, 3, false},
		{"four tracks fully listened", 4, 4, 0, true},
		{"six tracks fully listened", 6, 6, 0, true},
		{"six tracks one missing", 6, 5, 5, false},
		{"eight tracks three quarters", 8, 6, 0, true},
		{"eight tracks under three quarters", 8, 5, 0, false},
		{"twelve tracks nine listened", 12, 9, 0, true},
		{"twelve tracks eight listened", 12, 8, 0, false},
		{"heavy rotation qualifies large album", 12, 3, 3, true},
		{"two heavy tracks not enough", 12, 3, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := meetsSaveCriteria(tt.total, tt.listened, tt.heavy); got != tt.want {
				t.Errorf("meetsSaveCriteria(%d, %d, %d) = %v, want %v", tt.total, tt.listened, tt.heavy, got, tt.want)
			}
		})
	}
}

func TestAlbumEngine(t *testing.T) {
	listened := time.Now().UTC().Add(-time.Hour)

	// seedAlbumListens writes history aggregates for count tracks on one album.
	seedAlbumListens := func(t *testing.T, history *repositories.HistoryRepository, artist, album string, count, plays int) {
		t.Helper()
		for i := 0; i < count; i++ {
			name := fmt.Sprintf("track %02d", i)
			if _, err := history.Upsert(artist, name, album, plays, listened); err != nil {
				t.Fatalf("failed to seed history: %v", err)
			}
		}
	}

	// albumListing builds a candidate track listing of the given length.
	albumListing := func(remoteID, artist string, count int) []models.CandidateTrack {
		tracks := make([]models.CandidateTrack, count)
		for i := range tracks {
			tracks[i] = models.CandidateTrack{
				RemoteID: fmt.Sprintf("%s-t%02d", remoteID, i),
				Name:     fmt.Sprintf("track %02d", i),
				Artist:   artist,
				AlbumID:  remoteID,
			}
		}
		return tracks
	}

	t.Run("Saves Qualifying Album", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		albums := repositories.NewLibraryAlbumRepository(db)
		meta := repositories.NewMetadataRepository(db)

		// 6 of 8 tracks listened: exactly three quarters.
		seedAlbumListens(t, history, "queen", "A Night at the Opera", 6, 1)

		catalog := &fakeCatalog{
			albumsByQuery: map[string][]models.CandidateAlbum{
				albumQuery("a night at the opera", "queen"): {
					{RemoteID: "al1", Name: "A Night at the Opera", Artist: "Queen"},
				},
			},
			albumTracks: map[string][]models.CandidateTrack{
				"al1": albumListing("al1", "Queen", 8),
			},
		}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history, albums, meta)

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Considered != 1 {
			t.Errorf("expected 1 considered, got %d", result.Considered)
		}
		if result.Saved != 1 {
			t.Errorf("expected 1 saved, got %d", result.Saved)
		}
		if len(catalog.saveCalls) != 1 || catalog.saveCalls[0][0] != "al1" {
			t.Errorf("expected one save call with al1, got %v", catalog.saveCalls)
		}

		entry, err := albums.GetByRemoteID("al1")
		if err != nil {
			t.Fatalf("expected saved album indexed: %v", err)
		}
		if entry.Name != "a night at the opera" || entry.TrackCount != 8 {
			t.Errorf("expected indexed entry with normalized name and track count, got %q/%d", entry.Name, entry.TrackCount)
		}

		if _, ok, err := meta.GetTime(repositories.KeyAlbumsLastCheck); err != nil || !ok {
			t.Errorf("expected checkpoint set, ok=%v err=%v", ok, err)
		}
	})

	t.Run("Heavy Rotation Saves Large Album", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)

		// Only 3 of 12 tracks listened, each on heavy rotation.
		seedAlbumListens(t, history, "queen", "Innuendo", 3, 4)

		catalog := &fakeCatalog{
			albumsByQuery: map[string][]models.CandidateAlbum{
				albumQuery("innuendo", "queen"): {
					{RemoteID: "al2", Name: "Innuendo", Artist: "Queen"},
				},
			},
			albumTracks: map[string][]models.CandidateTrack{
				"al2": albumListing("al2", "Queen", 12),
			},
		}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewLibraryAlbumRepository(db),
			repositories.NewMetadataRepository(db))

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Saved != 1 {
			t.Errorf("expected heavy rotation album saved, got %d saved / %d skipped", result.Saved, result.Skipped)
		}
	})

	t.Run("Skips Sparse Listening", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)

		// 4 of 10 tracks listened, light plays: fails both large-album rules.
		seedAlbumListens(t, history, "queen", "Jazz", 4, 1)

		catalog := &fakeCatalog{
			albumsByQuery: map[string][]models.CandidateAlbum{
				albumQuery("jazz", "queen"): {
					{RemoteID: "al3", Name: "Jazz", Artist: "Queen"},
				},
			},
			albumTracks: map[string][]models.CandidateTrack{
				"al3": albumListing("al3", "Queen", 10),
			},
		}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewLibraryAlbumRepository(db),
			repositories.NewMetadataRepository(db))

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Skipped != 1 {
			t.Errorf("expected sparse album skipped, got %d skipped", result.Skipped)
		}
		if len(catalog.saveCalls) != 0 {
			t.Errorf("expected no save calls, got %v", catalog.saveCalls)
		}
	})

	t.Run("Skips Various Artists", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		if _, err := history.Upsert("various artists", "some song", "Now That's Music", 3, listened); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}

		catalog := &fakeCatalog{}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewLibraryAlbumRepository(db),
			repositories.NewMetadataRepository(db))

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Skipped != 1 {
			t.Errorf("expected compilation skipped, got %d", result.Skipped)
		}
		if catalog.searchCalls != 0 {
			t.Errorf("expected no resolution for compilations, got %d searches", catalog.searchCalls)
		}
	})

	t.Run("Skips Already Saved", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		albums := repositories.NewLibraryAlbumRepository(db)

		seedAlbumListens(t, history, "queen", "Jazz", 4, 1)
		if err := albums.Upsert(&models.LibraryAlbum{RemoteID: "al9", Name: "jazz", Artist: "queen", TrackCount: 10}); err != nil {
			t.Fatalf("failed to seed library: %v", err)
		}

		catalog := &fakeCatalog{}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history, albums,
			repositories.NewMetadataRepository(db))

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Skipped != 1 {
			t.Errorf("expected already saved album skipped, got %d", result.Skipped)
		}
		if catalog.searchCalls != 0 {
			t.Errorf("expected no searches for a saved album, got %d", catalog.searchCalls)
		}
	})

	t.Run("Unresolved Album Skipped", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		seedAlbumListens(t, history, "obscurity", "Demo Tape", 4, 1)

		catalog := &fakeCatalog{}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewLibraryAlbumRepository(db),
			repositories.NewMetadataRepository(db))

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Skipped != 1 {
			t.Errorf("expected unresolved album skipped, got %d", result.Skipped)
		}
	})

	t.Run("Stalled Listing Fails Soft", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		meta := repositories.NewMetadataRepository(db)
		seedAlbumListens(t, history, "queen", "Jazz", 4, 1)

		catalog := &fakeCatalog{
			albumsByQuery: map[string][]models.CandidateAlbum{
				albumQuery("jazz", "queen"): {
					{RemoteID: "al3", Name: "Jazz", Artist: "Queen"},
				},
			},
			albumTracksHang: true,
		}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewLibraryAlbumRepository(db), meta)
		engine.fetchTimeout = 10 * time.Millisecond

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Failed != 1 {
			t.Errorf("expected 1 failed on stalled listing, got %d", result.Failed)
		}
		if len(result.Errors) != 1 {
			t.Errorf("expected 1 recorded error, got %d", len(result.Errors))
		}

		if _, ok, err := meta.GetTime(repositories.KeyAlbumsLastCheck); err != nil || !ok {
			t.Errorf("expected checkpoint advanced despite soft failure, ok=%v err=%v", ok, err)
		}
	})

	t.Run("Checkpoint Filters Later Runs", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		seedAlbumListens(t, history, "queen", "A Night at the Opera", 6, 1)

		catalog := &fakeCatalog{
			albumsByQuery: map[string][]models.CandidateAlbum{
				albumQuery("a night at the opera", "queen"): {
					{RemoteID: "al1", Name: "A Night at the Opera", Artist: "Queen"},
				},
			},
			albumTracks: map[string][]models.CandidateTrack{
				"al1": albumListing("al1", "Queen", 8),
			},
		}
		engine := NewAlbumEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewLibraryAlbumRepository(db),
			repositories.NewMetadataRepository(db))

		if _, err := engine.Run(context.Background(), nil); err != nil {
			t.Fatalf("first Run() error = %v", err)
		}

		second, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("second Run() error = %v", err)
		}

		if second.Considered != 0 {
			t.Errorf("expected no candidates after checkpoint, got %d", second.Considered)
		}
	})

	t.Run("Catalog Not Initialized", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		engine := NewAlbumEngine(nil, newTestResolver(t, db, &fakeCatalog{}),
			repositories.NewHistoryRepository(db),
			repositories.NewLibraryAlbumRepository(db),
			repositories.NewMetadataRepository(db))

		_, err := engine.Run(context.Background(), nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
