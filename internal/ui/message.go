package ui

import (
	"github.com/spinsapp/spins/internal/models"
	"github.com/spinsapp/spins/internal/tasks"
)

// candidatesFetchedMsg delivers the frequently played aggregates for review.
type candidatesFetchedMsg struct {
	candidates []*models.HistoryTrack
	err        error
}

// progressUpdateMsg wraps an engine progress update for the running view.
type progressUpdateMsg tasks.ProgressUpdate

// runCompleteMsg delivers the final result of a liker run.
type runCompleteMsg struct {
	result *tasks.LikerResult
	err    error
}
