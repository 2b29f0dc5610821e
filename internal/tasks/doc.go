// Package tasks implements the reconciliation engines that turn listening
// history into catalog state.
//
// # Engines
//
// Each engine is a small struct over the repositories and services it needs,
// constructed once and driven by a single run method:
//
//  1. [IngestEngine] : Pull plays from the scrobble source
//     - Resumes from the newest recorded listen
//     - Folds plays into per-identity history aggregates
//
//  2. [LibrarySyncEngine] : Mirror the remote library locally
//     - Full walk on first run, newest-first delta afterwards
//     - Indexes liked tracks and saved albums under normalized identities
//
//  3. [LikerEngine] : Like frequently played tracks
//     - Candidates are unprocessed aggregates at the play threshold
//     - Resolves through the match engine and likes in batches
//
//  4. [AlbumEngine] : Save albums listened to in depth
//     - Applies the save thresholds against play history
//     - Fetches each album's track listing under a time cap
//
//  5. [DedupeEngine] : Remove duplicate likes and saves
//     - Groups library entries by normalized identity
//     - Keeps one survivor per group and removes the rest
//
//  6. [RotationEngine] : Maintain the heavy-rotation playlist
//     - Rebuilds the playlist from the most played recent tracks
//     - Creates it once, recreates it if it vanishes remotely
//
// # Progress Reporting
//
// All engines send [ProgressUpdate] values on a caller-supplied channel.
// Updates use select with default so a slow or absent consumer never blocks
// a run.
//
// # Failure Handling
//
// Engines return partial results alongside errors. Authentication failures,
// storage failures, and context cancellation abort a run; per-item failures
// are counted in the result and the run continues. Failed work is left
// unmarked so the next run retries it.
package tasks
