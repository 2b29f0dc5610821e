package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// notFoundSentinel marks a cached negative resolution. The sentinel never
// leaves this package; callers see an empty remote ID instead.
const notFoundSentinel = "NOT_FOUND"

// SearchCacheRepository persists resolution outcomes keyed by kind and
// normalized identity. It backs the match engine's cache so each identity
// is searched against the catalog at most once.
type SearchCacheRepository struct {
	db *sql.DB
}

// NewSearchCacheRepository creates a new SearchCacheRepository with the given database connection
func NewSearchCacheRepository(db *sql.DB) *SearchCacheRepository {
	return &SearchCacheRepository{db: db}
}

// Lookup returns the cached outcome for an identity. cached reports whether
// any entry exists; a cached negative yields ("", true, nil).
func (r *SearchCacheRepository) Lookup(kind, name, artist string) (string, bool, error) {
	var remoteID string
	query := `SELECT remote_id FROM search_cache WHERE kind = ? AND name = ? AND artist = ?`

	err := r.db.QueryRow(query, kind, name, artist).Scan(&remoteID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query search cache: %w", err)
	}

	if remoteID == notFoundSentinel {
		return "", true, nil
	}
	return remoteID, true, nil
}

// Store records a resolution outcome, replacing any previous entry for the
// identity. An empty remoteID records a negative.
func (r *SearchCacheRepository) Store(kind, name, artist, remoteID string) error {
	value := remoteID
	if value == "" {
		value = notFoundSentinel
	}

	query := `
		INSERT INTO search_cache (kind, name, artist, remote_id, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, name, artist) DO UPDATE SET remote_id = excluded.remote_id, cached_at = excluded.cached_at
	`

	if _, err := r.db.Exec(query, kind, name, artist, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store search cache entry: %w", err)
	}

	return nil
}

// Clear removes every cache entry and returns the number removed
func (r *SearchCacheRepository) Clear() (int, error) {
	result, err := r.db.Exec(`DELETE FROM search_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear search cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

// ClearNegative removes only cached negatives, forcing those identities to
// be searched again on the next run.
func (r *SearchCacheRepository) ClearNegative() (int, error) {
	result, err := r.db.Exec(`DELETE FROM search_cache WHERE remote_id = ?`, notFoundSentinel)
	if err != nil {
		return 0, fmt.Errorf("failed to clear negative cache entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

// Count returns the total number of entries and how many are negatives
func (r *SearchCacheRepository) Count() (total int, negative int, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN remote_id = ? THEN 1 ELSE 0 END), 0)
		FROM search_cache
	`

	if err := r.db.QueryRow(query, notFoundSentinel).Scan(&total, &negative); err != nil {
		return 0, 0, fmt.Errorf("failed to count search cache entries: %w", err)
	}

	return total, negative, nil
}
