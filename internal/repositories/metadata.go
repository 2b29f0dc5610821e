package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// Checkpoint keys persisted in the metadata table.
const (
	KeyHistoryLastUpdate  = "history_last_update"
	KeyLibraryLastUpdate  = "library_last_update"
	KeyAlbumsLastCheck    = "albums_last_check"
	KeyRotationPlaylistID = "rotation_playlist_id"
)

// MetadataRepository persists run checkpoints and other key/value state
type MetadataRepository struct {
	db *sql.DB
}

// NewMetadataRepository creates a new MetadataRepository with the given database connection
func NewMetadataRepository(db *sql.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// Get returns the value for a key, or an empty string when the key is unset
func (r *MetadataRepository) Get(key string) (string, error) {
	var value string

	err := r.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query metadata: %w", err)
	}

	return value, nil
}

// Set stores the value for a key, replacing any previous value
func (r *MetadataRepository) Set(key, value string) error {
	query := `
		INSERT INTO metadata (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}

// GetTime returns the timestamp stored under a key. ok is false when the key
// is unset.
func (r *MetadataRepository) GetTime(key string) (value time.Time, ok bool, err error) {
	raw, err := r.Get(key)
	if err != nil {
		return time.Time{}, false, err
	}
	if raw == "" {
		return time.Time{}, false, nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse metadata timestamp %q: %w", key, err)
	}

	return parsed, true, nil
}

// SetTime stores a timestamp under a key in RFC 3339 UTC form
func (r *MetadataRepository) SetTime(key string, value time.Time) error {
	return r.Set(key, value.UTC().Format(time.RFC3339))
}
