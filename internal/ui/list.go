package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/spotiseek/internal/models"
)

var _ list.Item = outcomeItem{}

// outcomeItem wraps a failed [models.DownloadOutcome] to implement [list.Item].
type outcomeItem struct {
	outcome models.DownloadOutcome
}

func (i outcomeItem) FilterValue() string { return i.outcome.Track.Display() }
func (i outcomeItem) Title() string       { return i.outcome.Track.Display() }
func (i outcomeItem) Description() string { return i.outcome.Message }

// newFailureList builds the scrollable list of failed tracks shown on the
// result screen.
func newFailureList(failures []models.DownloadOutcome, width, height int) list.Model {
	items := make([]list.Item, len(failures))
	for i, outcome := range failures {
		items[i] = outcomeItem{outcome: outcome}
	}

	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = "Failed Tracks"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return l
}
