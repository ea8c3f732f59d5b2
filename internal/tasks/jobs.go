package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
)

const (
	// MaxTracksPerJob caps how many playlist tracks a single job processes.
	MaxTracksPerJob = 50

	// DefaultRetention is how long finished jobs and their output linger
	// before PruneExpired removes them.
	DefaultRetention = 5 * time.Hour
)

// EngineFactory builds the engine for a job once its output directory is
// known. The job's directory is derived from its generated ID, so the engine
// cannot exist before the row does.
type EngineFactory func(outputDir string, progress chan<- ProgressUpdate) *DownloadEngine

// JobRunner wraps a batch run in a persisted [models.Job]: it creates the
// row, folds the progress stream into row updates while the orchestrator
// works, and finalizes the status when the run ends.
type JobRunner struct {
	store       models.Repository[*models.Job]
	provider    services.PlaylistProvider
	newEngine   EngineFactory
	outputRoot  string
	trackLimit  int
	concurrency int
	preference  []string
	logger      *log.Logger
}

// JobRunnerOpts contains configuration options for creating a JobRunner.
type JobRunnerOpts struct {
	Store       models.Repository[*models.Job]
	Provider    services.PlaylistProvider
	NewEngine   EngineFactory
	OutputRoot  string
	TrackLimit  int      // per-job track cap, clamped to MaxTracksPerJob
	Concurrency int
	Preference  []string // shaped format order, echoed in the job's opening log line
	Logger      *log.Logger
}

// NewJobRunner creates a JobRunner with the provided options.
func NewJobRunner(opts JobRunnerOpts) *JobRunner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.TrackLimit <= 0 || opts.TrackLimit > MaxTracksPerJob {
		opts.TrackLimit = MaxTracksPerJob
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	return &JobRunner{
		store:       opts.Store,
		provider:    opts.Provider,
		newEngine:   opts.NewEngine,
		outputRoot:  opts.OutputRoot,
		trackLimit:  opts.TrackLimit,
		concurrency: opts.Concurrency,
		preference:  opts.Preference,
		logger:      opts.Logger,
	}
}

// Run executes one playlist download as a persisted job.
//
// The returned job always reflects its final state. The error is non-nil only
// for job-level failures (unresolvable playlist, unusable output directory)
// and for cancellation, which wraps [shared.ErrJobCancelled]; individual
// track failures are tallied, not fatal.
func (r *JobRunner) Run(ctx context.Context, playlistRef string, control *Control, progress chan<- ProgressUpdate) (*models.Job, error) {
	if control == nil {
		control = NewControl()
	}

	playlistID := formatter.ExtractPlaylistID(playlistRef)
	job := models.NewJob(0, playlistID)
	if err := r.store.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if len(r.preference) > 0 {
		sendUpdate(progress, logUpdate("Job %s started · prefer=%s", job.ID(), strings.Join(r.preference, " > ")))
	}

	playlist, err := r.provider.FetchPlaylist(ctx, playlistRef)
	if err != nil {
		r.finalize(job, models.JobStatusFailed, err.Error())
		return job, err
	}

	tracks := playlist.Tracks
	if len(tracks) > r.trackLimit {
		sendUpdate(progress, logUpdate("Track limit: processing first %d of %d tracks", r.trackLimit, len(tracks)))
		tracks = tracks[:r.trackLimit]
	}

	outputDir := filepath.Join(r.outputRoot, job.ID())
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		wrapped := fmt.Errorf("failed to create output directory: %w", err)
		r.finalize(job, models.JobStatusFailed, wrapped.Error())
		return job, wrapped
	}

	started := time.Now()
	job.SetStatus(models.JobStatusRunning)
	job.SetStartedAt(&started)
	job.SetPlaylistName(playlist.Name)
	job.SetTotalTracks(len(tracks))
	job.SetOutputDir(outputDir)
	if err := r.store.Update(job); err != nil {
		r.logger.Warn("failed to persist job start", "job", job.ID(), "error", err)
	}

	sendUpdate(progress, logUpdate("Playlist: %s (%d tracks)", playlist.Name, len(tracks)))

	// The orchestrator and engine publish to an internal channel; each event
	// is folded into the job row, then forwarded to the caller's sink.
	internal := make(chan ProgressUpdate, 64)
	var folding sync.WaitGroup
	folding.Add(1)
	go func() {
		defer folding.Done()
		for update := range internal {
			r.fold(job, control, update)
			sendUpdate(progress, update)
		}
	}()

	engine := r.newEngine(outputDir, internal)
	orchestrator := NewOrchestrator(OrchestratorOpts{
		Engine:      engine,
		Concurrency: r.concurrency,
		Control:     control,
		Progress:    internal,
		Logger:      r.logger,
	})

	ok, fail, runErr := orchestrator.Run(ctx, tracks)
	close(internal)
	folding.Wait()

	job.SetOkCount(ok)
	job.SetFailCount(fail)
	job.SetProcessedTracks(ok + fail)

	switch {
	case runErr == nil:
		r.finalize(job, models.JobStatusCompleted, "")
	case errors.Is(runErr, shared.ErrJobCancelled):
		r.finalize(job, models.JobStatusCancelled, "Job cancelled")
		if err := os.RemoveAll(outputDir); err != nil {
			r.logger.Warn("failed to remove cancelled job output", "dir", outputDir, "error", err)
		}
	default:
		r.finalize(job, models.JobStatusFailed, runErr.Error())
	}

	return job, runErr
}

// fold applies one progress event to the job row. The control state is
// mirrored so observers of the store see pauses, not just terminal statuses.
func (r *JobRunner) fold(job *models.Job, control *Control, update ProgressUpdate) {
	switch update.Kind {
	case TrackStarted:
		job.SetCurrentIndex(update.Current)
		job.SetCurrentTrack(update.Track.Display())
	case TrackDone:
		job.SetOkCount(update.Ok)
		job.SetFailCount(update.Fail)
		job.SetProcessedTracks(update.Ok + update.Fail)
	default:
		return
	}

	if !job.Terminal() {
		if control.Paused() {
			job.SetStatus(models.JobStatusPaused)
		} else if !control.Cancelled() {
			job.SetStatus(models.JobStatusRunning)
		}
	}

	if err := r.store.Update(job); err != nil {
		r.logger.Warn("failed to persist job progress", "job", job.ID(), "error", err)
	}
}

func (r *JobRunner) finalize(job *models.Job, status, errorMessage string) {
	completed := time.Now()
	job.SetStatus(status)
	job.SetCompletedAt(&completed)
	job.SetCurrentTrack("")
	if errorMessage != "" {
		job.SetErrorMessage(errorMessage)
	}

	if err := r.store.Update(job); err != nil {
		r.logger.Error("failed to persist job status", "job", job.ID(), "status", status, "error", err)
	}
}

// PruneExpired removes jobs that finished longer than retention ago, deleting
// their output directories first. It returns how many jobs were pruned.
func (r *JobRunner) PruneExpired(retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention)

	expired, err := r.store.List(map[string]any{"finished_before": cutoff})
	if err != nil {
		return 0, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	pruned := 0
	for _, job := range expired {
		if dir := job.OutputDir(); dir != "" {
			if err := os.RemoveAll(dir); err != nil {
				r.logger.Warn("failed to remove job output", "job", job.ID(), "dir", dir, "error", err)
				continue
			}
		}
		if err := r.store.Delete(job.ID()); err != nil {
			r.logger.Warn("failed to delete job", "job", job.ID(), "error", err)
			continue
		}
		pruned++
	}

	return pruned, nil
}
