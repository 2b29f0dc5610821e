package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
)

// HistoryRepository implements models.Repository[*models.HistoryTrack] for play history.
//
// Each row aggregates every scrobble of one normalized (artist, name) identity.
// Upsert folds new plays into the aggregate; the liker marks rows processed so
// a track is submitted for liking at most once.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create inserts a new [models.HistoryTrack] into the database with generated ID and sequence
func (r *HistoryRepository) Create(track *models.HistoryTrack) error {
	sequence, err := NextSequence(r.db, "history_tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	track.SetID(shared.GenerateID())
	track.SetSequence(sequence)

	now := time.Now().UTC()
	if track.CreatedAt().IsZero() {
		track.SetCreatedAt(now)
	}
	track.SetUpdatedAt(now)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO history_tracks (id, sequence, artist, name, album, listen_count, last_listened, external_id, processed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID(),
		track.Sequence(),
		track.Artist,
		track.Name,
		track.Album,
		track.ListenCount,
		track.LastListened,
		track.ExternalID,
		track.Processed,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history track: %w", err)
	}

	return nil
}

// Get retrieves a history track by ID
func (r *HistoryRepository) Get(id string) (*models.HistoryTrack, error) {
	query := `
		SELECT id, sequence, artist, name, album, listen_count, last_listened, external_id, processed, created_at, updated_at
		FROM history_tracks
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByIdentity retrieves the aggregate for a normalized (artist, name) pair
func (r *HistoryRepository) GetByIdentity(artist, name string) (*models.HistoryTrack, error) {
	query := `
		SELECT id, sequence, artist, name, album, listen_count, last_listened, external_id, processed, created_at, updated_at
		FROM history_tracks
		WHERE artist = ? AND name = ?
	`

	return r.scanOne(r.db.QueryRow(query, artist, name))
}

// Upsert folds a batch of plays for one identity into its aggregate.
//
// New identities are created with the batch's count. Existing aggregates gain
// the count, keep the latest listen time, and fill a missing album title.
func (r *HistoryRepository) Upsert(artist, name, album string, plays int, lastListened time.Time) (*models.HistoryTrack, error) {
	existing, err := r.GetByIdentity(artist, name)
	if errors.Is(err, shared.ErrNotFound) {
		track := &models.HistoryTrack{
			Artist:       artist,
			Name:         name,
			Album:        album,
			ListenCount:  plays,
			LastListened: lastListened,
		}
		if err := r.Create(track); err != nil {
			return nil, err
		}
		return track, nil
	}
	if err != nil {
		return nil, err
	}

	existing.ListenCount += plays
	if lastListened.After(existing.LastListened) {
		existing.LastListened = lastListened
	}
	if existing.Album == "" && album != "" {
		existing.Album = album
	}

	if err := r.Update(existing); err != nil {
		return nil, err
	}

	return existing, nil
}

// Update modifies an existing history track in the database
func (r *HistoryRepository) Update(track *models.HistoryTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	track.SetUpdatedAt(now)

	query := `
		UPDATE history_tracks
		SET album = ?, listen_count = ?, last_listened = ?, external_id = ?, processed = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		track.Album,
		track.ListenCount,
		track.LastListened,
		track.ExternalID,
		track.Processed,
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update history track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("history track not found: %s", track.ID())
	}

	return nil
}

// MarkProcessed flags an aggregate as handled by the liker. Idempotent:
// already-processed and absent rows are no-ops.
func (r *HistoryRepository) MarkProcessed(id string) error {
	query := `UPDATE history_tracks SET processed = 1, updated_at = ? WHERE id = ?`

	if _, err := r.db.Exec(query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to mark history track processed: %w", err)
	}

	return nil
}

// Delete removes a history track by ID
func (r *HistoryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM history_tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("history track not found: %s", id)
	}

	return nil
}

// List retrieves all history tracks matching the given criteria
func (r *HistoryRepository) List(criteria map[string]any) ([]*models.HistoryTrack, error) {
	query := `
		SELECT id, sequence, artist, name, album, listen_count, last_listened, external_id, processed, created_at, updated_at
		FROM history_tracks
		WHERE 1 = 1
	`

	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	if processed, ok := criteria["processed"].(bool); ok {
		query += " AND processed = ?"
		args = append(args, processed)
	}

	if minListens, ok := criteria["min_listen_count"].(int); ok && minListens > 0 {
		query += " AND listen_count >= ?"
		args = append(args, minListens)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history tracks: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// FrequentlyPlayed returns unprocessed aggregates with at least minListens
// plays, most played first.
func (r *HistoryRepository) FrequentlyPlayed(minListens int) ([]*models.HistoryTrack, error) {
	query := `
		SELECT id, sequence, artist, name, album, listen_count, last_listened, external_id, processed, created_at, updated_at
		FROM history_tracks
		WHERE listen_count >= ? AND processed = 0
		ORDER BY listen_count DESC, sequence ASC
	`

	rows, err := r.db.Query(query, minListens)
	if err != nil {
		return nil, fmt.Errorf("failed to query frequently played tracks: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// TopPlayed returns the most played aggregates whose last listen falls on or
// after since, capped at limit.
func (r *HistoryRepository) TopPlayed(since time.Time, limit int) ([]*models.HistoryTrack, error) {
	query := `
		SELECT id, sequence, artist, name, album, listen_count, last_listened, external_id, processed, created_at, updated_at
		FROM history_tracks
		WHERE last_listened >= ?
		ORDER BY listen_count DESC, last_listened DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top played tracks: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// AlbumsSince returns the distinct (artist, album) pairs listened to on or
// after since. Rows without an album title are skipped.
func (r *HistoryRepository) AlbumsSince(since time.Time) ([]models.AlbumListen, error) {
	query := `
		SELECT DISTINCT artist, album
		FROM history_tracks
		WHERE album != '' AND last_listened >= ?
		ORDER BY artist ASC, album ASC
	`

	rows, err := r.db.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query listened albums: %w", err)
	}
	defer rows.Close()

	var albums []models.AlbumListen
	for rows.Next() {
		var listen models.AlbumListen
		if err := rows.Scan(&listen.Artist, &listen.Album); err != nil {
			return nil, fmt.Errorf("failed to scan listened album: %w", err)
		}
		albums = append(albums, listen)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return albums, nil
}

// LastListenTime returns the newest last_listened across all aggregates.
// ok is false when the history is empty.
func (r *HistoryRepository) LastListenTime() (value time.Time, ok bool, err error) {
	query := `
		SELECT last_listened
		FROM history_tracks
		ORDER BY last_listened DESC
		LIMIT 1
	`

	err = r.db.QueryRow(query).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query last listen time: %w", err)
	}

	return value, true, nil
}

// Count returns the number of history aggregates
func (r *HistoryRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM history_tracks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history tracks: %w", err)
	}
	return count, nil
}

// collect drains [sql.Rows] into history tracks
func (r *HistoryRepository) collect(rows *sql.Rows) ([]*models.HistoryTrack, error) {
	var tracks []*models.HistoryTrack
	for rows.Next() {
		track, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row] into a [models.HistoryTrack]
func (r *HistoryRepository) scanOne(row *sql.Row) (*models.HistoryTrack, error) {
	var (
		id           string
		sequence     int
		artist       string
		name         string
		album        string
		listenCount  int
		lastListened time.Time
		externalID   string
		processed    bool
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&id, &sequence, &artist, &name, &album, &listenCount, &lastListened, &externalID, &processed, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("history track: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history track: %w", err)
	}

	track := &models.HistoryTrack{
		Artist:       artist,
		Name:         name,
		Album:        album,
		ListenCount:  listenCount,
		LastListened: lastListened,
		ExternalID:   externalID,
		Processed:    processed,
	}
	track.SetID(id)
	track.SetSequence(sequence)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)

	return track, nil
}

// scanRow scans a row from [sql.Rows] into a [models.HistoryTrack]
func (r *HistoryRepository) scanRow(rows *sql.Rows) (*models.HistoryTrack, error) {
	var (
		id           string
		sequence     int
		artist       string
		name         string
		album        string
		listenCount  int
		lastListened time.Time
		externalID   string
		processed    bool
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := rows.Scan(&id, &sequence, &artist, &name, &album, &listenCount, &lastListened, &externalID, &processed, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history track: %w", err)
	}

	track := &models.HistoryTrack{
		Artist:       artist,
		Name:         name,
		Album:        album,
		ListenCount:  listenCount,
		LastListened: lastListened,
		ExternalID:   externalID,
		Processed:    processed,
	}
	track.SetID(id)
	track.SetSequence(sequence)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)

	return track, nil
}
