package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/repositories"
	"github.com/spinsapp/spins/internal/services"
	"github.com/spinsapp/spins/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// newTestResolver wires a match engine over real cache and audit tables
func newTestResolver(t *testing.T, db *sql.DB, catalog *fakeCatalog) *match.Engine {
	t.Helper()
	return match.NewEngine(repositories.NewSearchCacheRepository(db), catalog, repositories.NewUnfoundRepository(db))
}

// trackQuery is the most specific track search formulation the resolver
// issues, used to key canned search results.
func trackQuery(name, artist string) string {
	return fmt.Sprintf("track:%s artist:%s", name, artist)
}

// albumQuery is the album search formulation the resolver issues.
func albumQuery(name, artist string) string {
	return fmt.Sprintf("album:%s artist:%s", name, artist)
}

type replaceCall struct {
	playlistID string
	ids        []string
}

// fakeCatalog implements services.Catalog with canned data and call recording.
type fakeCatalog struct {
	tracksByQuery map[string][]models.CandidateTrack
	albumsByQuery map[string][]models.CandidateAlbum

	likedTracks []models.CandidateTrack
	savedAlbums []models.CandidateAlbum

	albumsByID  map[string]models.CandidateAlbum
	albumTracks map[string][]models.CandidateTrack

	searchCalls int

	likeCalls    [][]string
	unlikeCalls  [][]string
	saveCalls    [][]string
	unsaveCalls  [][]string
	replaceCalls []replaceCall

	createdNames   []string
	nextPlaylistID string

	searchErr       error
	likeErr         error
	saveErr         error
	removeErr       error
	replaceErr      error
	replaceErrOnce  bool // Only fail the first replace call
	albumTracksErr  error
	albumTracksHang bool // Block until the fetch context is cancelled
}

var _ services.Catalog = (*fakeCatalog)(nil)

func (f *fakeCatalog) Name() string { return "Fake" }

func (f *fakeCatalog) SearchTracks(ctx context.Context, query string, limit int) ([]models.CandidateTrack, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.tracksByQuery[query], nil
}

func (f *fakeCatalog) SearchAlbums(ctx context.Context, query string, limit int) ([]models.CandidateAlbum, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.albumsByQuery[query], nil
}

func (f *fakeCatalog) LikedTracks(ctx context.Context, limit, offset int) ([]models.CandidateTrack, int, error) {
	total := len(f.likedTracks)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return f.likedTracks[offset:end], total, nil
}

func (f *fakeCatalog) SavedAlbums(ctx context.Context, limit, offset int) ([]models.CandidateAlbum, int, error) {
	total := len(f.savedAlbums)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return f.savedAlbums[offset:end], total, nil
}

func (f *fakeCatalog) LikeTracks(ctx context.Context, remoteIDs []string) error {
	if f.likeErr != nil {
		return f.likeErr
	}
	f.likeCalls = append(f.likeCalls, remoteIDs)
	return nil
}

func (f *fakeCatalog) RemoveLikedTracks(ctx context.Context, remoteIDs []string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.unlikeCalls = append(f.unlikeCalls, remoteIDs)
	return nil
}

func (f *fakeCatalog) SaveAlbums(ctx context.Context, remoteIDs []string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saveCalls = append(f.saveCalls, remoteIDs)
	return nil
}

func (f *fakeCatalog) RemoveSavedAlbums(ctx context.Context, remoteIDs []string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.unsaveCalls = append(f.unsaveCalls, remoteIDs)
	return nil
}

func (f *fakeCatalog) AreTracksLiked(ctx context.Context, remoteIDs []string) ([]bool, error) {
	return make([]bool, len(remoteIDs)), nil
}

func (f *fakeCatalog) Album(ctx context.Context, remoteID string) (*models.CandidateAlbum, error) {
	if album, ok := f.albumsByID[remoteID]; ok {
		return &album, nil
	}
	return nil, fmt.Errorf("album %s: %w", remoteID, shared.ErrNotFound)
}

func (f *fakeCatalog) AlbumTracks(ctx context.Context, remoteID string) ([]models.CandidateTrack, error) {
	if f.albumTracksHang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.albumTracksErr != nil {
		return nil, f.albumTracksErr
	}
	return f.albumTracks[remoteID], nil
}

func (f *fakeCatalog) CreatePlaylist(ctx context.Context, name, description string) (string, error) {
	f.createdNames = append(f.createdNames, name)
	if f.nextPlaylistID != "" {
		return f.nextPlaylistID, nil
	}
	return fmt.Sprintf("playlist%d", len(f.createdNames)), nil
}

func (f *fakeCatalog) ReplacePlaylistTracks(ctx context.Context, playlistID string, remoteIDs []string) error {
	if f.replaceErr != nil {
		err := f.replaceErr
		if f.replaceErrOnce {
			f.replaceErr = nil
		}
		return err
	}
	f.replaceCalls = append(f.replaceCalls, replaceCall{playlistID: playlistID, ids: remoteIDs})
	return nil
}

// fakeSource implements services.ScrobbleSource with a canned play list.
type fakeSource struct {
	plays    []models.PlayEvent
	err      error
	lastFrom time.Time
}

var _ services.ScrobbleSource = (*fakeSource)(nil)

func (f *fakeSource) RecentPlays(ctx context.Context, from time.Time) ([]models.PlayEvent, error) {
	f.lastFrom = from
	if f.err != nil {
		return nil, f.err
	}
	return f.plays, nil
}

func TestBatchIDs(t *testing.T) {
	t.Run("Splits Into Size Chunks", func(t *testing.T) {
		ids := make([]string, 120)
		for i := range ids {
			ids[i] = fmt.Sprintf("id%d", i)
		}

		batches := batchIDs(ids, 50)

		if len(batches) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batches))
		}
		if len(batches[0]) != 50 || len(batches[1]) != 50 || len(batches[2]) != 20 {
			t.Errorf("expected batch sizes 50/50/20, got %d/%d/%d", len(batches[0]), len(batches[1]), len(batches[2]))
		}
		if batches[2][19] != "id119" {
			t.Errorf("expected last element id119, got %s", batches[2][19])
		}
	})

	t.Run("Exact Multiple", func(t *testing.T) {
		batches := batchIDs(make([]string, 100), 50)
		if len(batches) != 2 {
			t.Errorf("expected 2 batches, got %d", len(batches))
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		if batches := batchIDs(nil, 50); len(batches) != 0 {
			t.Errorf("expected no batches, got %d", len(batches))
		}
	})
}

func TestGroupByIdentity(t *testing.T) {
	identity := func(p models.PlayEvent) (models.TrackIdentity, bool) {
		return match.Identity(p.Artist, p.Name)
	}

	t.Run("Preserves First Seen Order", func(t *testing.T) {
		plays := []models.PlayEvent{
			{Artist: "Queen", Name: "Liar"},
			{Artist: "The Beatles", Name: "Hey Jude"},
			{Artist: "queen", Name: "LIAR"},
		}

		groups := groupByIdentity(plays, identity)

		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		if len(groups[0]) != 2 {
			t.Errorf("expected first group to hold both Liar plays, got %d", len(groups[0]))
		}
		if groups[1][0].Name != "Hey Jude" {
			t.Errorf("expected second group to hold Hey Jude, got %s", groups[1][0].Name)
		}
	})

	t.Run("Drops Unusable Identities", func(t *testing.T) {
		plays := []models.PlayEvent{
			{Artist: "", Name: "Hey Jude"},
			{Artist: "The Beatles", Name: "(Live)"},
			{Artist: "The Beatles", Name: "Hey Jude"},
		}

		groups := groupByIdentity(plays, identity)

		if len(groups) != 1 {
			t.Fatalf("expected 1 group, got %d", len(groups))
		}
		if len(groups[0]) != 1 {
			t.Errorf("expected 1 entry in group, got %d", len(groups[0]))
		}
	})
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		FetchPlays:    "fetch_plays",
		RecordPlays:   "record_plays",
		SyncTracks:    "sync_tracks",
		ResolveTracks: "resolve_tracks",
		ScanAlbums:    "scan_albums",
		ScanLibrary:   "scan_library",
		BuildRotation: "build_rotation",
	}

	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}

func TestSendProgress(t *testing.T) {
	t.Run("Nil Channel", func(t *testing.T) {
		sendProgress(nil, recordPlaysUpdate(1, 2))
	})

	t.Run("Full Channel Does Not Block", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 1)
		progress <- recordPlaysUpdate(1, 3)

		done := make(chan bool)
		go func() {
			sendProgress(progress, recordPlaysUpdate(2, 3))
			done <- true
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("sendProgress should not block on a full channel")
		}
	})

	t.Run("Delivers When Buffered", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 1)
		sendProgress(progress, resolveTrackUpdate(1, 4, "queen", "liar"))

		update := <-progress
		if update.Phase != ResolveTracks {
			t.Errorf("expected phase %v, got %v", ResolveTracks, update.Phase)
		}
		if update.Step != 1 || update.Total != 4 {
			t.Errorf("expected step 1/4, got %d/%d", update.Step, update.Total)
		}
	})
}

func TestIngestThroughLike(t *testing.T) {
	t.Run("Repeated Plays End Up Liked", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		history := repositories.NewHistoryRepository(db)
		library := repositories.NewLibraryTrackRepository(db)

		played := time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC)
		source := &fakeSource{}
		for i := 0; i < 5; i++ {
			source.plays = append(source.plays, models.PlayEvent{
				Artist:   "The Beatles",
				Name:     "Hey Jude (Remastered 2009)",
				Album:    "1",
				PlayedAt: played.Add(time.Duration(i) * time.Hour),
			})
		}

		ingest := NewIngestEngine(source, history)
		ingested, err := ingest.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("ingest Run() error = %v", err)
		}
		if ingested.Recorded != 5 {
			t.Fatalf("expected 5 recorded plays, got %d", ingested.Recorded)
		}

		frequent, err := history.FrequentlyPlayed(5)
		if err != nil {
			t.Fatalf("failed to query frequently played: %v", err)
		}
		if len(frequent) != 1 {
			t.Fatalf("expected 1 aggregate, got %d", len(frequent))
		}
		if frequent[0].Artist != "the beatles" || frequent[0].Name != "hey jude" {
			t.Errorf("expected normalized identity, got %q by %q", frequent[0].Name, frequent[0].Artist)
		}
		if frequent[0].ListenCount != 5 {
			t.Errorf("expected 5 listens, got %d", frequent[0].ListenCount)
		}

		catalog := &fakeCatalog{
			tracksByQuery: map[string][]models.CandidateTrack{
				trackQuery("hey jude", "the beatles"): {
					{RemoteID: "sp1", Name: "Hey Jude", Artist: "The Beatles"},
				},
			},
		}
		liker := NewLikerEngine(catalog, newTestResolver(t, db, catalog), history, library)

		likes, err := liker.Run(context.Background(), 5, nil)
		if err != nil {
			t.Fatalf("liker Run() error = %v", err)
		}
		if likes.Liked != 1 {
			t.Errorf("expected 1 liked, got %d", likes.Liked)
		}
		if len(catalog.likeCalls) != 1 || catalog.likeCalls[0][0] != "sp1" {
			t.Errorf("expected one like call with sp1, got %v", catalog.likeCalls)
		}

		aggregate, err := history.GetByIdentity("the beatles", "hey jude")
		if err != nil {
			t.Fatalf("failed to reload aggregate: %v", err)
		}
		if !aggregate.Processed {
			t.Error("expected aggregate marked processed after liking")
		}
	})
}
