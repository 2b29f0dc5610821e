// Shared helpers for engine batching, grouping, and progress emission.
package tasks

import (
	"github.com/spinsapp/spins/internal/models"
)

// batchSize is the catalog's cap on batch mutation endpoints.
const batchSize = 50

// libraryPageSize is the page length used when walking remote libraries.
const libraryPageSize = 50

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// batchIDs splits ids into runs of at most size.
func batchIDs(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// groupByIdentity buckets entries by their normalized identity, preserving
// first-seen order within and across buckets. Entries with no usable
// identity are dropped.
func groupByIdentity[T any](entries []T, identity func(T) (models.TrackIdentity, bool)) [][]T {
	index := make(map[models.TrackIdentity]int, len(entries))
	var groups [][]T

	for _, entry := range entries {
		key, ok := identity(entry)
		if !ok {
			continue
		}
		if at, seen := index[key]; seen {
			groups[at] = append(groups[at], entry)
		} else {
			index[key] = len(groups)
			groups = append(groups, []T{entry})
		}
	}

	return groups
}
