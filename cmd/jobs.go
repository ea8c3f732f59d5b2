package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/desertthunder/spotiseek/internal/tasks"
	"github.com/urfave/cli/v3"
)

// jobsCommand inspects and maintains the persisted job history.
func jobsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "Inspect download job history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded jobs, newest first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (pending, running, paused, completed, failed, cancelled)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsList,
			},
			{
				Name:  "show",
				Usage: "Show a single job by ID",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.JobsShow,
			},
			{
				Name:  "prune",
				Usage: "Soft-delete finished jobs older than the retention window",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "retention",
						Usage: "Retention window in hours",
						Value: 5,
					},
				},
				Action: r.JobsPrune,
			},
		},
	}
}

// jobView flattens a job into a serializable map for --json output.
func jobView(job *models.Job) map[string]any {
	view := map[string]any{
		"id":               job.ID(),
		"sequence":         job.Sequence(),
		"playlist_id":      job.PlaylistID(),
		"playlist_name":    job.PlaylistName(),
		"status":           job.Status(),
		"total_tracks":     job.TotalTracks(),
		"processed_tracks": job.ProcessedTracks(),
		"ok_count":         job.OkCount(),
		"fail_count":       job.FailCount(),
		"output_dir":       job.OutputDir(),
		"created_at":       job.CreatedAt(),
	}
	if job.ErrorMessage() != "" {
		view["error"] = job.ErrorMessage()
	}
	if t := job.StartedAt(); t != nil {
		view["started_at"] = *t
	}
	if t := job.CompletedAt(); t != nil {
		view["completed_at"] = *t
	}
	return view
}

// JobsList prints recorded jobs, optionally filtered by status.
func (r *Runner) JobsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	jobs, err := store.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]map[string]any, 0, len(jobs))
		for _, job := range jobs {
			views = append(views, jobView(job))
		}
		return r.writeJSON(views, true)
	}

	if len(jobs) == 0 {
		return r.writePlain("No jobs recorded.\n")
	}

	for _, job := range jobs {
		if err := r.writePlain("#%-3d %-36s %-9s %s\n",
			job.Sequence(), job.ID(), job.Status(), job.PlaylistName()); err != nil {
			return err
		}
	}
	return nil
}

// JobsShow prints the full record of one job.
func (r *Runner) JobsShow(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: job id", shared.ErrMissingArgument)
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := store.Get(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(jobView(job), true)
	}

	r.writePlainHeader(fmt.Sprintf("Job #%d", job.Sequence()))
	r.writePlain("ID: %s\n", job.ID())
	r.writePlain("Playlist: %s (%s)\n", job.PlaylistName(), job.PlaylistID())
	r.writePlain("Status: %s\n", job.Status())
	r.writePlain("Tracks: %d processed of %d, %d ok, %d failed\n",
		job.ProcessedTracks(), job.TotalTracks(), job.OkCount(), job.FailCount())
	if job.OutputDir() != "" {
		r.writePlain("Output: %s\n", job.OutputDir())
	}
	if job.ErrorMessage() != "" {
		r.writePlain("Error: %s\n", job.ErrorMessage())
	}
	if t := job.StartedAt(); t != nil {
		r.writePlain("Started: %s\n", t.Format(time.RFC3339))
	}
	if t := job.CompletedAt(); t != nil {
		r.writePlain("Completed: %s\n", t.Format(time.RFC3339))
	}
	return nil
}

// JobsPrune soft-deletes finished jobs past the retention window.
func (r *Runner) JobsPrune(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	runner := tasks.NewJobRunner(tasks.JobRunnerOpts{
		Store:  store,
		Logger: r.logger,
	})

	pruned, err := runner.PruneExpired(time.Duration(cmd.Int("retention")) * time.Hour)
	if err != nil {
		return err
	}

	return r.writePlain("Pruned %d job(s).\n", pruned)
}
