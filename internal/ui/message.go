package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/tasks"
)

// RunResult carries the terminal state of a job run back into the TUI.
type RunResult struct {
	Job *models.Job
	Err error
}

// updateMsg wraps one progress event from the running job.
type updateMsg tasks.ProgressUpdate

// runDoneMsg signals that the run goroutine returned.
type runDoneMsg RunResult

var (
	_ tea.Msg = updateMsg{}
	_ tea.Msg = runDoneMsg{}
)
