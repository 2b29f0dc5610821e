package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/shared"
)

// UnfoundRepository records identities whose catalog resolution came up
// empty. One audit row is kept per identity regardless of how many runs
// missed it.
type UnfoundRepository struct {
	db *sql.DB
}

// NewUnfoundRepository creates a new UnfoundRepository with the given database connection
func NewUnfoundRepository(db *sql.DB) *UnfoundRepository {
	return &UnfoundRepository{db: db}
}

// Record adds an identity to the audit. Recording an identity that is
// already present is a no-op.
func (r *UnfoundRepository) Record(name, artist string) error {
	query := `
		INSERT OR IGNORE INTO unfound_tracks (id, name, artist, searched_at)
		VALUES (?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, shared.GenerateID(), name, artist, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record unfound track: %w", err)
	}

	return nil
}

// List returns every audited identity, most recently searched first
func (r *UnfoundRepository) List() ([]models.UnfoundTrack, error) {
	query := `
		SELECT id, name, artist, searched_at
		FROM unfound_tracks
		ORDER BY searched_at DESC, name ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfound tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.UnfoundTrack
	for rows.Next() {
		var track models.UnfoundTrack
		if err := rows.Scan(&track.ID, &track.Name, &track.Artist, &track.SearchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unfound track: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// Count returns the number of audited identities
func (r *UnfoundRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM unfound_tracks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unfound tracks: %w", err)
	}
	return count, nil
}

// Clear removes every audit row and returns the number removed
func (r *UnfoundRepository) Clear() (int, error) {
	result, err := r.db.Exec(`DELETE FROM unfound_tracks`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear unfound tracks: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}
