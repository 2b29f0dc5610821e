package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
)

func TestHistoryRepositoryErrors(t *testing.T) {
	listened := time.Date(2026, 3, 14, 20, 30, 0, 0, time.UTC)

	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewHistoryRepository(db)
			track := &models.HistoryTrack{
				Artist:       "",
				Name:         "hey jude",
				ListenCount:  1,
				LastListened: listened,
			}

			if err := repo.Create(track); err == nil {
				t.Fatal("expected validation error for empty artist")
			}
		})

		t.Run("DuplicateIdentity", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewHistoryRepository(db)
			first := &models.HistoryTrack{
				Artist:       "the beatles",
				Name:         "hey jude",
				ListenCount:  1,
				LastListened: listened,
			}

			if err := repo.Create(first); err != nil {
				t.Fatalf("failed to create first track: %v", err)
			}

			second := &models.HistoryTrack{
				Artist:       "the beatles",
				Name:         "hey jude",
				ListenCount:  2,
				LastListened: listened,
			}

			if err := repo.Create(second); err == nil {
				t.Fatal("expected error when creating duplicate identity")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewHistoryRepository(db)

			_, err := repo.Get("nonexistent-id")
			if err == nil {
				t.Fatal("expected error when getting nonexistent track")
			}

			if !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("IdentityNotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewHistoryRepository(db)

			_, err := repo.GetByIdentity("nobody", "nothing")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	})

	t.Run("Update", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewHistoryRepository(db)
			track := &models.HistoryTrack{
				Artist:       "the beatles",
				Name:         "hey jude",
				ListenCount:  1,
				LastListened: listened,
			}
			track.SetID("nonexistent-id")

			if err := repo.Update(track); err == nil {
				t.Fatal("expected error when updating nonexistent track")
			}
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewHistoryRepository(db)

			if err := repo.Delete("nonexistent-id"); err == nil {
				t.Fatal("expected error when deleting nonexistent track")
			}
		})
	})

	t.Run("MarkProcessed", func(t *testing.T) {
		t.Run("NotFound", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewHistoryRepository(db)

			if err := repo.MarkProcessed("nonexistent-id"); err == nil {
				t.Fatal("expected error when marking nonexistent track")
			}
		})
	})
}

func TestLibraryTrackRepositoryErrors(t *testing.T) {
	added := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	t.Run("Create", func(t *testing.T) {
		t.Run("ValidationError", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewLibraryTrackRepository(db)
			track := &models.LibraryTrack{
				Name:    "hey jude",
				Artist:  "the beatles",
				AddedAt: added,
			}

			if err := repo.Create(track); err == nil {
				t.Fatal("expected validation error for missing remote ID")
			}
		})

		t.Run("DuplicateRemoteID", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewLibraryTrackRepository(db)
			first := &models.LibraryTrack{RemoteID: "sp1", Name: "hey jude", Artist: "the beatles", AddedAt: added}

			if err := repo.Create(first); err != nil {
				t.Fatalf("failed to create first track: %v", err)
			}

			second := &models.LibraryTrack{RemoteID: "sp1", Name: "let it be", Artist: "the beatles", AddedAt: added}

			if err := repo.Create(second); err == nil {
				t.Fatal("expected error when creating duplicate remote ID")
			}
		})
	})

	t.Run("NotFound errors", func(t *testing.T) {
		t.Run("GetByRemoteID", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewLibraryTrackRepository(db)

			_, err := repo.GetByRemoteID("nonexistent")
			if !errors.Is(err, shared.ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})

		t.Run("Update", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewLibraryTrackRepository(db)
			track := &models.LibraryTrack{RemoteID: "sp1", Name: "hey jude", Artist: "the beatles", AddedAt: added}
			track.SetID("nonexistent-id")

			if err := repo.Update(track); err == nil {
				t.Fatal("expected error when updating nonexistent track")
			}
		})

		t.Run("Delete", func(t *testing.T) {
			db := setupTestDB(t)
			defer db.Close()

			repo := NewLibraryTrackRepository(db)

			if err := repo.Delete("nonexistent-id"); err == nil {
				t.Fatal("expected error when deleting nonexistent track")
			}
		})
	})
}

func TestLibraryAlbumRepositoryErrors(t *testing.T) {
	t.Run("ValidationError", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLibraryAlbumRepository(db)
		album := &models.LibraryAlbum{Name: "abbey road", Artist: "the beatles"}

		if err := repo.Create(album); err == nil {
			t.Fatal("expected validation error for missing remote ID")
		}
	})

	t.Run("GetByRemoteID NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewLibraryAlbumRepository(db)

		_, err := repo.GetByRemoteID("nonexistent")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMetadataRepositoryErrors(t *testing.T) {
	t.Run("MalformedTimestamp", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewMetadataRepository(db)

		if err := repo.Set(KeyHistoryLastUpdate, "not-a-timestamp"); err != nil {
			t.Fatalf("failed to set metadata: %v", err)
		}

		if _, _, err := repo.GetTime(KeyHistoryLastUpdate); err == nil {
			t.Fatal("expected error for malformed timestamp")
		}
	})
}
