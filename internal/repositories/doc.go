// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Identities (artist, name pairs) are stored normalized, so lookups run against the same strings the match engine scores.
//
// Key Implementations:
//   - [HistoryRepository] : Play-count aggregates with identity-based upserts and frequency queries
//   - [LibraryTrackRepository] : Liked-track index keyed by catalog ID with exact and fuzzy membership checks
//   - [LibraryAlbumRepository] : Saved-album index keyed by catalog ID
//   - [SearchCacheRepository] : Resolution outcomes per (kind, name, artist), including negatives
//   - [UnfoundRepository] : Audit of identities that resolved to nothing
//   - [MetadataRepository] : Run checkpoints and other key/value state
//
// Sequence numbers provide stable, human-readable ordering (e.g., history track #42, album #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
