// Package models defines domain entities and persistence interfaces for the spins scrobble reconciliation service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [PlayEvent] : A single scrobble from the listening history source
//   - [CandidateTrack] : Track metadata from catalog searches and album listings
//   - [CandidateAlbum] : Album metadata from catalog searches and library listings
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [HistoryTrack] : Per-track play aggregates keyed by normalized (artist, name)
//   - [LibraryTrack] : Liked-track snapshot rows keyed by catalog remote ID
//   - [LibraryAlbum] : Saved-album snapshot rows keyed by catalog remote ID
//
// [UnfoundTrack] is a storage row without the full entity lifecycle: the
// unfound audit is append-only. The search cache stores bare columns keyed
// by (kind, name, artist) and has no model type at all.
//
// All persistent entities implement the Model interface providing ID generation, timestamps, and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
//
// [TrackIdentity] is the normalized (artist, name) pair used as the logical
// track identity everywhere two catalogs must agree on what "the same song" means.
package models
