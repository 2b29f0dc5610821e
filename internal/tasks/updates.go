package tasks

import (
	"fmt"
	"time"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPlays Phase = iota
	RecordPlays
	SyncTracks
	SyncAlbums
	ResolveTracks
	LikeBatch
	ScanAlbums
	SaveBatch
	ScanLibrary
	RemoveBatch
	BuildRotation
)

func (p Phase) String() string {
	switch p {
	case FetchPlays:
		return "fetch_plays"
	case RecordPlays:
		return "record_plays"
	case SyncTracks:
		return "sync_tracks"
	case SyncAlbums:
		return "sync_albums"
	case ResolveTracks:
		return "resolve_tracks"
	case LikeBatch:
		return "like_batch"
	case ScanAlbums:
		return "scan_albums"
	case SaveBatch:
		return "save_batch"
	case ScanLibrary:
		return "scan_library"
	case RemoveBatch:
		return "remove_batch"
	case BuildRotation:
		return "build_rotation"
	default:
		return ""
	}
}

func fetchPlaysUpdate(since time.Time) ProgressUpdate {
	message := "Fetching full scrobble history..."
	if !since.IsZero() {
		message = fmt.Sprintf("Fetching scrobbles since %s...", since.Format(time.RFC3339))
	}
	return ProgressUpdate{
		Phase:   FetchPlays,
		Step:    1,
		Total:   1,
		Message: message,
	}
}

func recordPlaysUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordPlays,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Recording plays...", step, total),
	}
}

func syncTracksUpdate(count, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncTracks,
		Step:    count,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Indexing liked tracks...", count, total),
	}
}

func syncAlbumsUpdate(count, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncAlbums,
		Step:    count,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Indexing saved albums...", count, total),
	}
}

func resolveTrackUpdate(step, total int, artist, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, artist, name),
	}
}

func likeBatchUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LikeBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Liking tracks...", step, total),
	}
}

func scanAlbumUpdate(step, total int, artist, album string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanAlbums,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, artist, album),
	}
}

func saveBatchUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SaveBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Saving albums...", step, total),
	}
}

func scanLibraryUpdate(kind string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Scanning %d %s for duplicates...", count, kind),
	}
}

func removeBatchUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing duplicates...", step, total),
	}
}

func buildRotationUpdate(count int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BuildRotation,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Placing %d tracks on %q...", count, name),
	}
}
