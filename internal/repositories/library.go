package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/match"
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
)

// LibraryTrackRepository implements models.Repository[*models.LibraryTrack]
// for the local snapshot of the remote liked-tracks library.
//
// Rows are keyed by the catalog's remote ID and carry the normalized identity,
// so membership checks run locally instead of against the API.
type LibraryTrackRepository struct {
	db *sql.DB
}

// NewLibraryTrackRepository creates a new LibraryTrackRepository with the given database connection
func NewLibraryTrackRepository(db *sql.DB) *LibraryTrackRepository {
	return &LibraryTrackRepository{db: db}
}

// Create inserts a new [models.LibraryTrack] into the database with generated ID and sequence
func (r *LibraryTrackRepository) Create(track *models.LibraryTrack) error {
	sequence, err := NextSequence(r.db, "library_tracks")
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
		INSERT INTO library_tracks (id, sequence, remote_id, name, artist, album, added_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID(),
		track.Sequence(),
		track.RemoteID,
		track.Name,
		track.Artist,
		track.Album,
		track.AddedAt,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert library track: %w", err)
	}

	return nil
}

// Get retrieves a library track by ID
func (r *LibraryTrackRepository) Get(id string) (*models.LibraryTrack, error) {
	query := `
		SELECT id, sequence, remote_id, name, artist, album, added_at, created_at, updated_at
		FROM library_tracks
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByRemoteID retrieves a library track by its catalog ID
func (r *LibraryTrackRepository) GetByRemoteID(remoteID string) (*models.LibraryTrack, error) {
	query := `
		SELECT id, sequence, remote_id, name, artist, album, added_at, created_at, updated_at
		FROM library_tracks
		WHERE remote_id = ?
	`

	return r.scanOne(r.db.QueryRow(query, remoteID))
}

// Upsert inserts the track or refreshes the existing row with the same remote ID
func (r *LibraryTrackRepository) Upsert(track *models.LibraryTrack) error {
	existing, err := r.GetByRemoteID(track.RemoteID)
	if errors.Is(err, shared.ErrNotFound) {
		return r.Create(track)
	}
	if err != nil {
		return err
	}

	existing.Name = track.Name
	existing.Artist = track.Artist
	existing.Album = track.Album
	existing.AddedAt = track.AddedAt

	return r.Update(existing)
}

// Update modifies an existing library track in the database
func (r *LibraryTrackRepository) Update(track *models.LibraryTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	track.SetUpdatedAt(now)

	query := `
		UPDATE library_tracks
		SET name = ?, artist = ?, album = ?, added_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		track.Name,
		track.Artist,
		track.Album,
		track.AddedAt,
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("library track not found: %s", track.ID())
	}

	return nil
}

// Delete removes a library track by ID
func (r *LibraryTrackRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM library_tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete library track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("library track not found: %s", id)
	}

	return nil
}

// DeleteByRemoteID removes the row with the given catalog ID. Missing rows
// are ignored so removal mirroring stays idempotent against a stale index.
func (r *LibraryTrackRepository) DeleteByRemoteID(remoteID string) error {
	if _, err := r.db.Exec(`DELETE FROM library_tracks WHERE remote_id = ?`, remoteID); err != nil {
		return fmt.Errorf("failed to delete library track: %w", err)
	}
	return nil
}

// HasRemoteID reports whether the index holds the given catalog ID
func (r *LibraryTrackRepository) HasRemoteID(remoteID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM library_tracks WHERE remote_id = ?)`
	if err := r.db.QueryRow(query, remoteID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query library tracks: %w", err)
	}
	return exists, nil
}

// ContainsByIdentity reports whether the index holds a row with the exact
// normalized (name, artist) pair.
func (r *LibraryTrackRepository) ContainsByIdentity(name, artist string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM library_tracks WHERE name = ? AND artist = ?)`
	if err := r.db.QueryRow(query, name, artist).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query library tracks: %w", err)
	}
	return exists, nil
}

// FuzzyContains reports whether any row matches the identity with a plain
// ratio above the strong threshold on both fields. name and artist are
// expected normalized.
func (r *LibraryTrackRepository) FuzzyContains(name, artist string) (bool, error) {
	rows, err := r.db.Query(`SELECT name, artist FROM library_tracks`)
	if err != nil {
		return false, fmt.Errorf("failed to query library tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowName, rowArtist string
		if err := rows.Scan(&rowName, &rowArtist); err != nil {
			return false, fmt.Errorf("failed to scan library track: %w", err)
		}
		if match.RatioScore(name, rowName) > match.StrongThreshold &&
			match.RatioScore(artist, rowArtist) > match.StrongThreshold {
			return true, nil
		}
	}

	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("row iteration error: %w", err)
	}

	return false, nil
}

// Count returns the number of indexed library tracks
func (r *LibraryTrackRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM library_tracks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count library tracks: %w", err)
	}
	return count, nil
}

// List retrieves all library tracks matching the given criteria
func (r *LibraryTrackRepository) List(criteria map[string]any) ([]*models.LibraryTrack, error) {
	query := `
		SELECT id, sequence, remote_id, name, artist, album, added_at, created_at, updated_at
		FROM library_tracks
		WHERE 1 = 1
	`

	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.LibraryTrack
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

// scanOne scans a single [sql.Row] into a [models.LibraryTrack]
func (r *LibraryTrackRepository) scanOne(row *sql.Row) (*models.LibraryTrack, error) {
	var (
		id        string
		sequence  int
		remoteID  string
		name      string
		artist    string
		album     string
		addedAt   time.Time
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &sequence, &remoteID, &name, &artist, &album, &addedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("library track: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan library track: %w", err)
	}

	track := &models.LibraryTrack{
		RemoteID: remoteID,
		Name:     name,
		Artist:   artist,
		Album:    album,
		AddedAt:  addedAt,
	}
	track.SetID(id)
	track.SetSequence(sequence)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)

	return track, nil
}

// scanRow scans a row from [sql.Rows] into a [models.LibraryTrack]
func (r *LibraryTrackRepository) scanRow(rows *sql.Rows) (*models.LibraryTrack, error) {
	var (
		id        string
		sequence  int
		remoteID  string
		name      string
		artist    string
		album     string
		addedAt   time.Time
		createdAt time.Time
		updatedAt time.Time
	)

	err := rows.Scan(&id, &sequence, &remoteID, &name, &artist, &album, &addedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan library track: %w", err)
	}

	track := &models.LibraryTrack{
		RemoteID: remoteID,
		Name:     name,
		Artist:   artist,
		Album:    album,
		AddedAt:  addedAt,
	}
	track.SetID(id)
	track.SetSequence(sequence)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)

	return track, nil
}

// LibraryAlbumRepository implements models.Repository[*models.LibraryAlbum]
// for the local snapshot of the remote saved-albums library.
type LibraryAlbumRepository struct {
	db *sql.DB
}

// NewLibraryAlbumRepository creates a new LibraryAlbumRepository with the given database connection
func NewLibraryAlbumRepository(db *sql.DB) *LibraryAlbumRepository {
	return &LibraryAlbumRepository{db: db}
}

// Create inserts a new [models.LibraryAlbum] into the database with generated ID and sequence
func (r *LibraryAlbumRepository) Create(album *models.LibraryAlbum) error {
	sequence, err := NextSequence(r.db, "library_albums")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	album.SetID(shared.GenerateID())
	album.SetSequence(sequence)

	now := time.Now().UTC()
	if album.CreatedAt().IsZero() {
		album.SetCreatedAt(now)
	}
	album.SetUpdatedAt(now)

	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO library_albums (id, sequence, remote_id, name, artist, track_count, added_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		album.ID(),
		album.Sequence(),
		album.RemoteID,
		album.Name,
		album.Artist,
		album.TrackCount,
		album.AddedAt,
		album.CreatedAt(),
		album.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert library album: %w", err)
	}

	return nil
}

// Get retrieves a library album by ID
func (r *LibraryAlbumRepository) Get(id string) (*models.LibraryAlbum, error) {
	query := `
		SELECT id, sequence, remote_id, name, artist, track_count, added_at, created_at, updated_at
		FROM library_albums
		WHERE id = ?
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByRemoteID retrieves a library album by its catalog ID
func (r *LibraryAlbumRepository) GetByRemoteID(remoteID string) (*models.LibraryAlbum, error) {
	query := `
		SELECT id, sequence, remote_id, name, artist, track_count, added_at, created_at, updated_at
		FROM library_albums
		WHERE remote_id = ?
	`

	return r.scanOne(r.db.QueryRow(query, remoteID))
}

// Upsert inserts the album or refreshes the existing row with the same remote ID
func (r *LibraryAlbumRepository) Upsert(album *models.LibraryAlbum) error {
	existing, err := r.GetByRemoteID(album.RemoteID)
	if errors.Is(err, shared.ErrNotFound) {
		return r.Create(album)
	}
	if err != nil {
		return err
	}

	existing.Name = album.Name
	existing.Artist = album.Artist
	existing.TrackCount = album.TrackCount
	existing.AddedAt = album.AddedAt

	return r.Update(existing)
}

// Update modifies an existing library album in the database
func (r *LibraryAlbumRepository) Update(album *models.LibraryAlbum) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	album.SetUpdatedAt(now)

	query := `
		UPDATE library_albums
		SET name = ?, artist = ?, track_count = ?, added_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		album.Name,
		album.Artist,
		album.TrackCount,
		album.AddedAt,
		now,
		album.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library album: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("library album not found: %s", album.ID())
	}

	return nil
}

// Delete removes a library album by ID
func (r *LibraryAlbumRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM library_albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete library album: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("library album not found: %s", id)
	}

	return nil
}

// DeleteByRemoteID removes the row with the given catalog ID. Missing rows
// are ignored so removal mirroring stays idempotent against a stale index.
func (r *LibraryAlbumRepository) DeleteByRemoteID(remoteID string) error {
	if _, err := r.db.Exec(`DELETE FROM library_albums WHERE remote_id = ?`, remoteID); err != nil {
		return fmt.Errorf("failed to delete library album: %w", err)
	}
	return nil
}

// HasRemoteID reports whether the index holds the given catalog ID
func (r *LibraryAlbumRepository) HasRemoteID(remoteID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM library_albums WHERE remote_id = ?)`
	if err := r.db.QueryRow(query, remoteID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query library albums: %w", err)
	}
	return exists, nil
}

// FuzzyContains reports whether any row matches the identity with a plain
// ratio above the strong threshold on both fields. name and artist are
// expected normalized.
func (r *LibraryAlbumRepository) FuzzyContains(name, artist string) (bool, error) {
	rows, err := r.db.Query(`SELECT name, artist FROM library_albums`)
	if err != nil {
		return false, fmt.Errorf("failed to query library albums: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowName, rowArtist string
		if err := rows.Scan(&rowName, &rowArtist); err != nil {
			return false, fmt.Errorf("failed to scan library album: %w", err)
		}
		if match.RatioScore(name, rowName) > match.StrongThreshold &&
			match.RatioScore(artist, rowArtist) > match.StrongThreshold {
			return true, nil
		}
	}

	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("row iteration error: %w", err)
	}

	return false, nil
}

// Count returns the number of indexed library albums
func (r *LibraryAlbumRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM library_albums`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count library albums: %w", err)
	}
	return count, nil
}

// List retrieves all library albums matching the given criteria
func (r *LibraryAlbumRepository) List(criteria map[string]any) ([]*models.LibraryAlbum, error) {
	query := `
		SELECT id, sequence, remote_id, name, artist, track_count, added_at, created_at, updated_at
		FROM library_albums
		WHERE 1 = 1
	`

	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.LibraryAlbum
	for rows.Next() {
		album, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return albums, nil
}

// scanOne scans a single [sql.Row] into a [models.LibraryAlbum]
func (r *LibraryAlbumRepository) scanOne(row *sql.Row) (*models.LibraryAlbum, error) {
	var (
		id         string
		sequence   int
		remoteID   string
		name       string
		artist     string
		trackCount int
		addedAt    time.Time
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&id, &sequence, &remoteID, &name, &artist, &trackCount, &addedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("library album: %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan library album: %w", err)
	}

	album := &models.LibraryAlbum{
		RemoteID:   remoteID,
		Name:       name,
		Artist:     artist,
		TrackCount: trackCount,
		AddedAt:    addedAt,
	}
	album.SetID(id)
	album.SetSequence(sequence)
	album.SetCreatedAt(createdAt)
	album.SetUpdatedAt(updatedAt)

	return album, nil
}

// scanRow scans a row from [sql.Rows] into a [models.LibraryAlbum]
func (r *LibraryAlbumRepository) scanRow(rows *sql.Rows) (*models.LibraryAlbum, error) {
	var (
		id         string
		sequence   int
		remoteID   string
		name       string
		artist     string
		trackCount int
		addedAt    time.Time
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := rows.Scan(&id, &sequence, &remoteID, &name, &artist, &trackCount, &addedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan library album: %w", err)
	}

	album := &models.LibraryAlbum{
		RemoteID:   remoteID,
		Name:       name,
		Artist:     artist,
		TrackCount: trackCount,
		AddedAt:    addedAt,
	}
	album.SetID(id)
	album.SetSequence(sequence)
	album.SetCreatedAt(createdAt)
	album.SetUpdatedAt(updatedAt)

	return album, nil
}
