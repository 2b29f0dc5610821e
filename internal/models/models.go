// package models defines the data model for the scrobble reconciliation service
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations include HistoryTrack, LibraryTrack, and LibraryAlbum.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Entity carries the persistence fields shared by all database-backed models.
type Entity struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
}

func (e *Entity) ID() string              { return e.id }
func (e *Entity) SetID(id string)         { e.id = id }
func (e *Entity) Sequence() int           { return e.sequence }
func (e *Entity) SetSequence(n int)       { e.sequence = n }
func (e *Entity) CreatedAt() time.Time    { return e.createdAt }
func (e *Entity) SetCreatedAt(t time.Time) { e.createdAt = t }
func (e *Entity) UpdatedAt() time.Time    { return e.updatedAt }
func (e *Entity) SetUpdatedAt(t time.Time) { e.updatedAt = t }

// TrackIdentity is the normalized (artist, name) pair that identifies a
// logical track across catalogs. Both fields hold normalized strings.
type TrackIdentity struct {
	Artist string
	Name   string
}

// HistoryTrack is the per-track play aggregate built from scrobbles.
// Artist and Name are stored normalized; the pair is unique.
type HistoryTrack struct {
	Entity
	Artist       string
	Name         string
	Album        string
	ListenCount  int
	LastListened time.Time
	ExternalID   string
	Processed    bool
}

// Validate checks required fields on the aggregate.
func (t *HistoryTrack) Validate() error {
	if t.Artist == "" || t.Name == "" {
		return fmt.Errorf("history track requires artist and name")
	}
	if t.ListenCount < 1 {
		return fmt.Errorf("history track requires listen count >= 1, got %d", t.ListenCount)
	}
	if t.LastListened.IsZero() {
		return fmt.Errorf("history track requires last listened time")
	}
	return nil
}

// Identity returns the normalized identity pair for this aggregate.
func (t *HistoryTrack) Identity() TrackIdentity {
	return TrackIdentity{Artist: t.Artist, Name: t.Name}
}

// LibraryTrack is a snapshot row of a liked track in the remote library.
// RemoteID is the catalog's authoritative, unique identifier; Name and
// Artist are stored normalized so the index answers identity lookups.
type LibraryTrack struct {
	Entity
	RemoteID string
	Name     string
	Artist   string
	Album    string
	AddedAt  time.Time
}

// Validate checks required fields on the snapshot row.
func (t *LibraryTrack) Validate() error {
	if t.RemoteID == "" {
		return fmt.Errorf("library track requires remote ID")
	}
	if t.Name == "" || t.Artist == "" {
		return fmt.Errorf("library track requires name and artist")
	}
	return nil
}

// LibraryAlbum is a snapshot row of a saved album in the remote library.
// Name and Artist are stored normalized, matching LibraryTrack.
type LibraryAlbum struct {
	Entity
	RemoteID   string
	Name       string
	Artist     string
	TrackCount int
	AddedAt    time.Time
}

// Validate checks required fields on the snapshot row.
func (a *LibraryAlbum) Validate() error {
	if a.RemoteID == "" {
		return fmt.Errorf("library album requires remote ID")
	}
	if a.Name == "" || a.Artist == "" {
		return fmt.Errorf("library album requires name and artist")
	}
	return nil
}

// UnfoundTrack is an audit row for identities that resolved to nothing.
type UnfoundTrack struct {
	ID         string
	Name       string
	Artist     string
	SearchedAt time.Time
}

// AlbumListen is a distinct (artist, album) pair observed in play history,
// used to nominate albums for the save criteria. Artist is normalized;
// Album carries the scrobble-reported title.
type AlbumListen struct {
	Artist string
	Album  string
}

// PlayEvent is a single scrobble emitted by the listening history source.
type PlayEvent struct {
	Artist   string
	Name     string
	Album    string
	PlayedAt time.Time
	MBID     string
}

// CandidateTrack is a track returned by a catalog search or album listing.
// AddedAt is set only on library pagination results.
type CandidateTrack struct {
	RemoteID string
	Name     string
	Artist   string
	Album    string
	AlbumID  string
	AddedAt  time.Time
}

// CandidateAlbum is an album returned by a catalog search or library listing.
type CandidateAlbum struct {
	RemoteID   string
	Name       string
	Artist     string
	TrackCount int
	AddedAt    time.Time
}
