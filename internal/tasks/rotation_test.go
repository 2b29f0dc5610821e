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

func TestRotationEngine(t *testing.T) {
	listened := time.Now().UTC().Add(-24 * time.Hour)

	queenQueries := map[string][]models.CandidateTrack{
		trackQuery("liar", "queen"):         {{RemoteID: "spA", Name: "Liar", Artist: "Queen"}},
		trackQuery("killer queen", "queen"): {{RemoteID: "spB", Name: "Killer Queen", Artist: "Queen"}},
		trackQuery("innuendo", "queen"):     {{RemoteID: "spC", Name: "Innuendo", Artist: "Queen"}},
	}

	seedPlays := func(t *testing.T, history *repositories.HistoryRepository) {
		t.Helper()
		for _, row := range []struct {
			name  string
			plays int
		}{
			{"liar", 9},
			{"killer queen", 5},
			{"innuendo", 2},
		} {
			if _, err := history.Upsert("queen", row.name, "", row.plays, listened); err != nil {
				t.Fatalf("failed to seed history: %v", err)
			}
		}
	}

	t.Run("Builds Playlist From Recent Plays", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		meta := repositories.NewMetadataRepository(db)
		seedPlays(t, history)

		catalog := &fakeCatalog{tracksByQuery: queenQueries}
		engine := NewRotationEngine(catalog, newTestResolver(t, db, catalog), history, meta, shared.RotationConfig{})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Candidates != 3 || result.Resolved != 3 {
			t.Errorf("expected 3 candidates resolved, got %d/%d", result.Candidates, result.Resolved)
		}
		if !result.Created {
			t.Error("expected playlist created on first run")
		}
		if len(catalog.createdNames) != 1 || catalog.createdNames[0] != "Heavy Rotation" {
			t.Errorf("expected default playlist name, got %v", catalog.createdNames)
		}

		if len(catalog.replaceCalls) != 1 {
			t.Fatalf("expected 1 replace call, got %d", len(catalog.replaceCalls))
		}
		call := catalog.replaceCalls[0]
		if call.playlistID != result.PlaylistID {
			t.Errorf("expected replace on %s, got %s", result.PlaylistID, call.playlistID)
		}
		want := []string{"spA", "spB", "spC"}
		if len(call.ids) != len(want) {
			t.Fatalf("expected %d tracks placed, got %d", len(want), len(call.ids))
		}
		for i, id := range want {
			if call.ids[i] != id {
				t.Errorf("expected track %d to be %s, got %s", i, id, call.ids[i])
			}
		}

		persisted, err := meta.Get(repositories.KeyRotationPlaylistID)
		if err != nil {
			t.Fatalf("failed to read persisted playlist ID: %v", err)
		}
		if persisted != result.PlaylistID {
			t.Errorf("expected persisted ID %s, got %s", result.PlaylistID, persisted)
		}
	})

	t.Run("Respects Size Cap", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		seedPlays(t, history)

		catalog := &fakeCatalog{tracksByQuery: queenQueries}
		engine := NewRotationEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewMetadataRepository(db), shared.RotationConfig{Size: 2})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Candidates != 2 {
			t.Errorf("expected 2 candidates under the cap, got %d", result.Candidates)
		}
		if got := catalog.replaceCalls[0].ids; len(got) != 2 || got[0] != "spA" || got[1] != "spB" {
			t.Errorf("expected the two most played tracks, got %v", got)
		}
	})

	t.Run("Window Excludes Old Plays", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		if _, err := history.Upsert("queen", "liar", "", 50, time.Now().UTC().AddDate(0, 0, -200)); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}
		if _, err := history.Upsert("queen", "innuendo", "", 2, listened); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}

		catalog := &fakeCatalog{tracksByQuery: queenQueries}
		engine := NewRotationEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewMetadataRepository(db), shared.RotationConfig{})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Candidates != 1 {
			t.Errorf("expected only the recent play inside the window, got %d", result.Candidates)
		}
		if got := catalog.replaceCalls[0].ids; len(got) != 1 || got[0] != "spC" {
			t.Errorf("expected spC placed, got %v", got)
		}
	})

	t.Run("Reuses Persisted Playlist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		meta := repositories.NewMetadataRepository(db)
		seedPlays(t, history)

		if err := meta.Set(repositories.KeyRotationPlaylistID, "pl-existing"); err != nil {
			t.Fatalf("failed to seed playlist ID: %v", err)
		}

		catalog := &fakeCatalog{tracksByQuery: queenQueries}
		engine := NewRotationEngine(catalog, newTestResolver(t, db, catalog), history, meta, shared.RotationConfig{})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Created {
			t.Error("expected no playlist creation when one is persisted")
		}
		if len(catalog.createdNames) != 0 {
			t.Errorf("expected no create calls, got %v", catalog.createdNames)
		}
		if catalog.replaceCalls[0].playlistID != "pl-existing" {
			t.Errorf("expected replace on persisted playlist, got %s", catalog.replaceCalls[0].playlistID)
		}
	})

	t.Run("Recreates Vanished Playlist", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		meta := repositories.NewMetadataRepository(db)
		seedPlays(t, history)

		if err := meta.Set(repositories.KeyRotationPlaylistID, "pl-gone"); err != nil {
			t.Fatalf("failed to seed playlist ID: %v", err)
		}

		catalog := &fakeCatalog{
			tracksByQuery:  queenQueries,
			replaceErr:     fmt.Errorf("%w: playlist pl-gone", shared.ErrNotFound),
			replaceErrOnce: true,
		}
		engine := NewRotationEngine(catalog, newTestResolver(t, db, catalog), history, meta, shared.RotationConfig{})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if !result.Created {
			t.Error("expected vanished playlist recreated")
		}
		if len(catalog.createdNames) != 1 {
			t.Fatalf("expected one create call, got %d", len(catalog.createdNames))
		}
		if len(catalog.replaceCalls) != 1 {
			t.Fatalf("expected the retried replace to land, got %d calls", len(catalog.replaceCalls))
		}
		if catalog.replaceCalls[0].playlistID != result.PlaylistID {
			t.Errorf("expected replace on the new playlist, got %s", catalog.replaceCalls[0].playlistID)
		}

		persisted, err := meta.Get(repositories.KeyRotationPlaylistID)
		if err != nil {
			t.Fatalf("failed to read persisted playlist ID: %v", err)
		}
		if persisted == "pl-gone" {
			t.Error("expected persisted ID replaced after recreation")
		}
	})

	t.Run("Unmatched Tracks Counted", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		if _, err := history.Upsert("obscurity", "deep cut", "", 8, listened); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}

		catalog := &fakeCatalog{}
		engine := NewRotationEngine(catalog, newTestResolver(t, db, catalog), history,
			repositories.NewMetadataRepository(db), shared.RotationConfig{})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Unmatched != 1 || result.Resolved != 0 {
			t.Errorf("expected 1 unmatched, got %d unmatched / %d resolved", result.Unmatched, result.Resolved)
		}
		if len(catalog.replaceCalls) != 1 || len(catalog.replaceCalls[0].ids) != 0 {
			t.Errorf("expected an empty replace that clears the playlist, got %v", catalog.replaceCalls)
		}
	})

	t.Run("Catalog Not Initialized", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		engine := NewRotationEngine(nil, newTestResolver(t, db, &fakeCatalog{}),
			repositories.NewHistoryRepository(db),
			repositories.NewMetadataRepository(db), shared.RotationConfig{})

		_, err := engine.Run(context.Background(), nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
