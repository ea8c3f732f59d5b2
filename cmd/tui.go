package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/desertthunder/spotiseek/internal/ui"
)

// runTUI runs a download job behind the interactive monitor view.
func (r *Runner) runTUI(ctx context.Context, playlistRef string, dryRun bool) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/spotiseek-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	run, err := r.newJobRun(dryRun)
	if err != nil {
		return err
	}
	defer run.db.Close()

	results := make(chan ui.RunResult, 1)
	model := ui.NewMonitor(ui.MonitorOpts{
		Control: run.control,
		Updates: run.updates,
		Results: results,
		Start: func() {
			go func() {
				job, err := run.runner.Run(ctx, playlistRef, run.control, run.updates)
				close(run.updates)
				results <- ui.RunResult{Job: job, Err: err}
			}()
		},
	})

	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
