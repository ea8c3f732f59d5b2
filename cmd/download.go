package main

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/desertthunder/spotiseek/internal/tasks"
	"github.com/urfave/cli/v3"
)

// downloadCommand runs the full playlist pipeline: resolve, search, enqueue, monitor.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download a Spotify playlist from the Soulseek network",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "playlist",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "output-root",
				Aliases: []string{"o"},
				Usage:   "Directory playlist folders are created under",
			},
			&cli.StringFlag{
				Name:  "formats",
				Usage: "Comma-separated format preference, best first (e.g. aiff,flac,wav)",
			},
			&cli.BoolFlag{
				Name:  "allow-lossy",
				Usage: "Accept lossy sources when no lossless copy is found",
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Download attempts per track before giving up",
			},
			&cli.IntFlag{
				Name:  "search-timeout",
				Usage: "Seconds to wait for Soulseek search responses",
			},
			&cli.IntFlag{
				Name:  "download-timeout",
				Usage: "Seconds to wait for a single transfer to finish",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "Tracks processed in parallel",
			},
			&cli.IntFlag{
				Name:  "track-limit",
				Usage: "Maximum tracks processed in one run",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve and search only, skip transfers",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show an interactive progress view",
			},
		},
		Action: r.Download,
	}
}

// applyDownloadFlags layers explicit command-line flags over the loaded config.
func applyDownloadFlags(config *shared.Config, cmd *cli.Command) {
	if cmd.IsSet("output-root") {
		config.Downloads.OutputRoot = cmd.String("output-root")
	}
	if cmd.IsSet("formats") {
		config.Downloads.Formats = cmd.String("formats")
	}
	if cmd.IsSet("allow-lossy") {
		config.Downloads.AllowLossy = cmd.Bool("allow-lossy")
	}
	if cmd.IsSet("max-retries") {
		config.Downloads.MaxRetries = cmd.Int("max-retries")
	}
	if cmd.IsSet("search-timeout") {
		config.Slskd.SearchTimeoutMS = cmd.Int("search-timeout") * 1000
	}
	if cmd.IsSet("download-timeout") {
		config.Downloads.DownloadTimeoutS = cmd.Int("download-timeout")
	}
	if cmd.IsSet("concurrency") {
		config.Downloads.Concurrency = cmd.Int("concurrency")
	}
	if cmd.IsSet("track-limit") {
		config.Downloads.TrackLimit = cmd.Int("track-limit")
	}
}

// jobRun bundles everything a single playlist run needs. The db handle stays
// open for the lifetime of the run so the job row can be updated throughout.
type jobRun struct {
	runner  *tasks.JobRunner
	control *tasks.Control
	updates chan tasks.ProgressUpdate
	db      *sql.DB
}

// newJobRun wires the provider, store, and engine factory from the runner's config.
func (r *Runner) newJobRun(dryRun bool) (*jobRun, error) {
	provider, err := r.provider()
	if err != nil {
		return nil, err
	}

	store, db, err := r.openStore()
	if err != nil {
		return nil, err
	}

	downloads := r.config.Downloads
	formats := formatter.ApplyLossyPolicy(
		formatter.NormalizePreference(downloads.Formats),
		downloads.AllowLossy,
	)
	client := r.slskd(formats)
	searchMu := &sync.Mutex{}

	runner := tasks.NewJobRunner(tasks.JobRunnerOpts{
		Store:       store,
		Provider:    provider,
		OutputRoot:  downloads.OutputRoot,
		TrackLimit:  downloads.TrackLimit,
		Concurrency: downloads.Concurrency,
		Preference:  formats,
		Logger:      r.logger,
		NewEngine: func(outputDir string, progress chan<- tasks.ProgressUpdate) *tasks.DownloadEngine {
			return tasks.NewDownloadEngine(tasks.EngineOpts{
				Search:          client,
				Transfers:       client,
				SearchMu:        searchMu,
				DownloadDir:     r.config.Slskd.DownloadDir,
				OutputDir:       outputDir,
				MaxRetries:      downloads.MaxRetries,
				DownloadTimeout: downloads.DownloadTimeout(),
				PollInterval:    downloads.PollInterval(),
				AllowLossy:      downloads.AllowLossy,
				DryRun:          dryRun,
				Logger:          r.logger,
				Progress:        progress,
			})
		},
	})

	return &jobRun{
		runner:  runner,
		control: tasks.NewControl(),
		updates: make(chan tasks.ProgressUpdate, 256),
		db:      db,
	}, nil
}

// Download resolves a playlist and downloads every track, printing progress as it goes.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	playlistRef := cmd.StringArg("playlist")
	if playlistRef == "" {
		return fmt.Errorf("%w: playlist URL or ID", shared.ErrMissingArgument)
	}

	applyDownloadFlags(r.config, cmd)
	if err := r.config.Validate(); err != nil {
		return err
	}

	if cmd.Bool("tui") {
		return r.runTUI(ctx, playlistRef, cmd.Bool("dry-run"))
	}

	run, err := r.newJobRun(cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer run.db.Close()

	// Transfer progress percentages are for the TUI; the engine narrates
	// every other step as log lines, including per-track outcomes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range run.updates {
			switch update.Kind {
			case tasks.TrackStarted:
				r.writePlainln("%s", update.Message)
			case tasks.TransferState, tasks.TrackDone:
			default:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	job, err := run.runner.Run(ctx, playlistRef, run.control, run.updates)
	close(run.updates)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Download Complete")
	r.writePlain("Playlist: %s\n", job.PlaylistName())
	r.writePlain("Tracks: %d processed, %d ok, %d failed\n", job.ProcessedTracks(), job.OkCount(), job.FailCount())
	if job.OkCount() > 0 {
		r.writePlain("Saved to: %s\n", job.OutputDir())
	}
	r.writePlain("Job: %s\n", job.ID())

	if job.FailCount() > 0 {
		return fmt.Errorf("%d of %d tracks failed", job.FailCount(), job.TotalTracks())
	}
	return nil
}
