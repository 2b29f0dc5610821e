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

func TestIngestEngine(t *testing.T) {
	played := time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC)

	t.Run("Folds Plays Into Aggregates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		source := &fakeSource{plays: []models.PlayEvent{
			{Artist: "The Beatles", Name: "Hey Jude", PlayedAt: played},
			{Artist: "Queen", Name: "Liar", Album: "Queen", PlayedAt: played.Add(time.Hour)},
			{Artist: "the beatles", Name: "Hey Jude!", Album: "Hey Jude", PlayedAt: played.Add(2 * time.Hour)},
			{Artist: "The Beatles", Name: "Hey Jude", PlayedAt: played.Add(3 * time.Hour)},
		}}

		engine := NewIngestEngine(source, history)
		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Fetched != 4 {
			t.Errorf("expected 4 fetched, got %d", result.Fetched)
		}
		if result.Recorded != 4 {
			t.Errorf("expected 4 recorded, got %d", result.Recorded)
		}
		if result.Skipped != 0 {
			t.Errorf("expected 0 skipped, got %d", result.Skipped)
		}

		aggregate, err := history.GetByIdentity("the beatles", "hey jude")
		if err != nil {
			t.Fatalf("failed to get aggregate: %v", err)
		}
		if aggregate.ListenCount != 3 {
			t.Errorf("expected listen count 3, got %d", aggregate.ListenCount)
		}
		if aggregate.Album != "Hey Jude" {
			t.Errorf("expected first reported album title, got %q", aggregate.Album)
		}
		if !aggregate.LastListened.Equal(played.Add(3 * time.Hour)) {
			t.Errorf("expected newest play time, got %v", aggregate.LastListened)
		}
	})

	t.Run("Skips Unusable Identities", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		source := &fakeSource{plays: []models.PlayEvent{
			{Artist: "", Name: "Hey Jude", PlayedAt: played},
			{Artist: "The Beatles", Name: "(Live)", PlayedAt: played},
			{Artist: "Queen", Name: "Liar", PlayedAt: played},
		}}

		engine := NewIngestEngine(source, history)
		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if result.Skipped != 2 {
			t.Errorf("expected 2 skipped, got %d", result.Skipped)
		}
		if result.Recorded != 1 {
			t.Errorf("expected 1 recorded, got %d", result.Recorded)
		}

		count, err := history.Count()
		if err != nil {
			t.Fatalf("failed to count history: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 aggregate, got %d", count)
		}
	})

	t.Run("First Run Fetches Everything", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		source := &fakeSource{}
		engine := NewIngestEngine(source, repositories.NewHistoryRepository(db))

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if !source.lastFrom.IsZero() {
			t.Errorf("expected zero from time on first run, got %v", source.lastFrom)
		}
		if !result.Since.IsZero() {
			t.Errorf("expected zero since in result, got %v", result.Since)
		}
	})

	t.Run("Resumes From Last Listen", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		if _, err := history.Upsert("queen", "liar", "Queen", 2, played); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}

		source := &fakeSource{plays: []models.PlayEvent{
			{Artist: "Queen", Name: "Liar", PlayedAt: played.Add(time.Hour)},
		}}
		engine := NewIngestEngine(source, history)

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if !source.lastFrom.Equal(played) {
			t.Errorf("expected fetch from %v, got %v", played, source.lastFrom)
		}
		if !result.Since.Equal(played) {
			t.Errorf("expected since %v, got %v", played, result.Since)
		}

		aggregate, err := history.GetByIdentity("queen", "liar")
		if err != nil {
			t.Fatalf("failed to get aggregate: %v", err)
		}
		if aggregate.ListenCount != 3 {
			t.Errorf("expected listen count 3 after second run, got %d", aggregate.ListenCount)
		}
	})

	t.Run("Source Error Propagates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		source := &fakeSource{err: fmt.Errorf("scrobble API down")}
		engine := NewIngestEngine(source, history)

		if _, err := engine.Run(context.Background(), nil); err == nil {
			t.Error("Run() expected error from failing source")
		}

		count, err := history.Count()
		if err != nil {
			t.Fatalf("failed to count history: %v", err)
		}
		if count != 0 {
			t.Errorf("expected no aggregates after failed fetch, got %d", count)
		}
	})

	t.Run("Source Not Initialized", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		engine := NewIngestEngine(nil, repositories.NewHistoryRepository(db))

		_, err := engine.Run(context.Background(), nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Reports Progress", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		source := &fakeSource{plays: []models.PlayEvent{
			{Artist: "Queen", Name: "Liar", PlayedAt: played},
		}}
		engine := NewIngestEngine(source, repositories.NewHistoryRepository(db))

		progress := make(chan ProgressUpdate, 10)
		if _, err := engine.Run(context.Background(), progress); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
		}
		if len(phases) < 2 {
			t.Fatalf("expected fetch and record updates, got %d", len(phases))
		}
		if phases[0] != FetchPlays {
			t.Errorf("expected first phase %v, got %v", FetchPlays, phases[0])
		}
		if phases[1] != RecordPlays {
			t.Errorf("expected second phase %v, got %v", RecordPlays, phases[1])
		}
	})
}
