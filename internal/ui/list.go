package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/spinsapp/spins/internal/models"
)

var _ list.Item = candidateItem{}

// candidateItem wraps [models.HistoryTrack] to implement [list.Item].
type candidateItem struct {
	track *models.HistoryTrack
}

func (i candidateItem) FilterValue() string { return i.track.Name }
func (i candidateItem) Title() string       { return i.track.Name }
func (i candidateItem) Description() string {
	desc := fmt.Sprintf("%s • %d plays", i.track.Artist, i.track.ListenCount)
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return desc
}
