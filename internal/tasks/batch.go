package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"golang.org/x/sync/errgroup"
)

// pausePollInterval is how often paused workers re-check the control state.
const pausePollInterval = time.Second

// Orchestrator fans a playlist's tracks out to a bounded pool of workers
// running one [DownloadEngine].
//
// Concurrency parallelizes the enqueue/await phases only: every worker's
// searches still serialize through the engine's shared mutex. Workers check
// the [Control] before picking up a track, so pause and cancel take effect at
// track boundaries while in-flight transfers finish or time out naturally.
type Orchestrator struct {
	engine      *DownloadEngine
	concurrency int
	control     *Control
	progress    chan<- ProgressUpdate
	logger      *log.Logger

	mu   sync.Mutex
	ok   int
	fail int
}

// OrchestratorOpts contains configuration options for creating an Orchestrator.
type OrchestratorOpts struct {
	Engine      *DownloadEngine
	Concurrency int // worker pool size, default 1 (sequential)
	Control     *Control
	Progress    chan<- ProgressUpdate
	Logger      *log.Logger
}

// NewOrchestrator creates an Orchestrator with the provided options.
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Control == nil {
		opts.Control = NewControl()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Orchestrator{
		engine:      opts.Engine,
		concurrency: opts.Concurrency,
		control:     opts.Control,
		progress:    opts.Progress,
		logger:      opts.Logger,
	}
}

// Run processes every track and returns the final success and failure
// tallies. Cancellation aborts tracks not yet started and returns an error
// wrapping [shared.ErrJobCancelled]; tracks already processed stay counted.
func (o *Orchestrator) Run(ctx context.Context, tracks []models.Track) (int, int, error) {
	total := len(tracks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, track := range tracks {
		g.Go(func() error {
			if err := o.awaitTurn(gctx); err != nil {
				return err
			}

			sendUpdate(o.progress, trackStartedUpdate(i+1, total, track))
			outcome := o.engine.ProcessTrack(gctx, track)
			o.recordOutcome(i+1, total, outcome)
			return nil
		})
	}

	err := g.Wait()

	o.mu.Lock()
	ok, fail := o.ok, o.fail
	o.mu.Unlock()

	sendUpdate(o.progress, batchDoneUpdate(ok, fail))
	return ok, fail, err
}

// awaitTurn blocks while the run is paused and aborts once it is cancelled.
func (o *Orchestrator) awaitTurn(ctx context.Context) error {
	for {
		if o.control.Cancelled() {
			return fmt.Errorf("%w: batch aborted before next track", shared.ErrJobCancelled)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", shared.ErrJobCancelled, ctx.Err())
		}
		if !o.control.Paused() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", shared.ErrJobCancelled, ctx.Err())
		case <-time.After(pausePollInterval):
		}
	}
}

func (o *Orchestrator) recordOutcome(current, total int, outcome models.DownloadOutcome) {
	o.mu.Lock()
	if outcome.Success {
		o.ok++
	} else {
		o.fail++
	}
	ok, fail := o.ok, o.fail
	o.mu.Unlock()

	if !outcome.Success {
		o.logger.Warn("track failed", "track", outcome.Track.Display(), "reason", outcome.Message)
	}

	sendUpdate(o.progress, trackDoneUpdate(current, total, &outcome, ok, fail))
}
