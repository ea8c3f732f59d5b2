package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
)

const (
	defaultMaxRetries      = 3
	defaultDownloadTimeout = 4 * time.Minute
	defaultPollInterval    = 2 * time.Second
	hitPreviewLimit        = 5
)

// DownloadEngine turns a single playlist track into a finished file on disk.
//
// The pipeline per track: fan the track's queries out to the search client
// (lossless first, lossy fallback when allowed), rank the deduplicated
// candidates, then walk them best-first enqueueing and awaiting each transfer
// until one lands or the retry budget runs out. A successful download is
// renamed into the output directory under a sanitized, collision-safe name.
//
// ProcessTrack never returns an error: every failure mode folds into the
// returned outcome so a batch keeps moving.
type DownloadEngine struct {
	search    services.SearchClient
	transfers services.TransferClient

	// searchMu serializes searches across engines sharing one client; the
	// daemon rate-limits globally, not per connection.
	searchMu *sync.Mutex

	downloadDir string // where slskd writes finished downloads
	outputDir   string // where renamed files end up

	maxRetries      int
	downloadTimeout time.Duration
	pollInterval    time.Duration
	allowLossy      bool
	dryRun          bool

	logger   *log.Logger
	progress chan<- ProgressUpdate
}

// EngineOpts contains configuration options for creating a DownloadEngine.
type EngineOpts struct {
	Search    services.SearchClient
	Transfers services.TransferClient
	SearchMu  *sync.Mutex

	DownloadDir string
	OutputDir   string

	MaxRetries      int           // candidate attempts per track, default 3
	DownloadTimeout time.Duration // per-candidate transfer deadline, default 4m
	PollInterval    time.Duration // transfer poll spacing, default 2s
	AllowLossy      bool
	DryRun          bool

	Logger   *log.Logger
	Progress chan<- ProgressUpdate
}

// NewDownloadEngine creates a DownloadEngine with the provided options.
func NewDownloadEngine(opts EngineOpts) *DownloadEngine {
	if opts.SearchMu == nil {
		opts.SearchMu = &sync.Mutex{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = defaultDownloadTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &DownloadEngine{
		search:          opts.Search,
		transfers:       opts.Transfers,
		searchMu:        opts.SearchMu,
		downloadDir:     opts.DownloadDir,
		outputDir:       opts.OutputDir,
		maxRetries:      opts.MaxRetries,
		downloadTimeout: opts.DownloadTimeout,
		pollInterval:    opts.PollInterval,
		allowLossy:      opts.AllowLossy,
		dryRun:          opts.DryRun,
		logger:          opts.Logger,
		progress:        opts.Progress,
	}
}

// ProcessTrack runs the full search → rank → download pipeline for one track.
func (e *DownloadEngine) ProcessTrack(ctx context.Context, track models.Track) models.DownloadOutcome {
	outcome := models.DownloadOutcome{Track: track}
	seen := map[string]bool{}

	e.emit("Searching: %s", track.Display())

	candidates := e.gatherCandidates(ctx, track, true, &outcome, seen)
	if len(candidates) == 0 {
		if !e.allowLossy {
			outcome.Message = "No lossless sources found"
			e.emit(" ! %s", outcome.Message)
			return outcome
		}
		candidates = e.gatherCandidates(ctx, track, false, &outcome, seen)
		if len(candidates) == 0 {
			outcome.Message = "No sources found (even lossy)"
			e.emit(" ! %s", outcome.Message)
			return outcome
		}
	}

	models.SortCandidates(candidates)

	// tried counts every candidate that reaches the enqueue step, including
	// ones whose enqueue is rejected: the budget bounds daemon interactions,
	// not confirmed transfers.
	tried := 0
	for _, candidate := range candidates {
		if tried >= e.maxRetries {
			break
		}
		tried++

		outcome.Candidates = append(outcome.Candidates, candidate.Label())
		e.emit(" ↳ candidate: %s", candidate.Label())

		if e.dryRun {
			outcome.Success = true
			outcome.Message = "Dry-run (skipped download)"
			e.emit("   %s", outcome.Message)
			return outcome
		}

		if err := e.transfers.Enqueue(ctx, candidate.Username, candidate.Filename, candidate.Size); err != nil {
			e.logger.Warn("enqueue rejected", "peer", candidate.Username, "error", err)
			e.emit(" ! Enqueue failed: %v", err)
			continue
		}

		base := formatter.BasenameAny(candidate.Filename)
		e.emit("   waiting for download...")

		ok, record, err := e.transfers.AwaitCompletion(ctx, services.AwaitOptions{
			Username:     candidate.Username,
			Basename:     base,
			Timeout:      e.downloadTimeout,
			PollInterval: e.pollInterval,
			OnProgress: func(state string, percent float64) {
				sendUpdate(e.progress, transferStateUpdate(track, state, percent))
			},
			FileFinder: func() string {
				return shared.FindFileByName(e.downloadDir, base)
			},
		})
		if err != nil {
			// only context cancellation reaches here; the track is abandoned
			outcome.Message = fmt.Sprintf("Cancelled while waiting: %v", err)
			e.emit(" ! %s", outcome.Message)
			return outcome
		}
		if !ok {
			// the daemon's word is not final: peers misreport terminal states,
			// so check the disk before writing the candidate off
			if found := shared.FindFileByName(e.downloadDir, base); found != "" {
				e.emit("   transfer unconfirmed but file is present, accepting")
				return e.finishDownload(found, track, &outcome)
			}
			reason := ""
			if record != nil && record.FailureReason != "" {
				reason = fmt.Sprintf(" (%s)", record.FailureReason)
			}
			e.emit(" ! candidate failed or timed out%s", reason)
			continue
		}

		src := shared.FindFileByName(e.downloadDir, base)
		if src == "" {
			outcome.Message = "Downloaded file not found in slskd directory"
			e.emit(" ! %s", outcome.Message)
			return outcome
		}

		return e.finishDownload(src, track, &outcome)
	}

	outcome.Message = "All candidates failed"
	e.emit(" ! %s", outcome.Message)
	return outcome
}

// gatherCandidates fans the track's queries out to the search client and
// accumulates deduplicated hits. The seen set spans both the lossless and
// lossy rounds so a peer/file pair surfaced twice is only ever tried once.
func (e *DownloadEngine) gatherCandidates(ctx context.Context, track models.Track, losslessOnly bool, outcome *models.DownloadOutcome, seen map[string]bool) []models.Candidate {
	var gathered []models.Candidate

	for _, query := range track.QueryStrings() {
		if losslessOnly {
			e.emit(" · Query: %s", query)
		} else {
			e.emit(" · Query (lossy ok): %s", query)
		}

		appendQuery(outcome, query)

		hits, err := e.searchSerialized(ctx, query, losslessOnly)
		if err != nil {
			e.logger.Warn("search failed", "query", query, "error", err)
			e.emit(" ! Search failed: %v", err)
			outcome.Diagnostics = append(outcome.Diagnostics, models.SearchDiagnostic{
				Query:        query,
				LosslessOnly: losslessOnly,
			})
			continue
		}

		outcome.Diagnostics = append(outcome.Diagnostics, models.SearchDiagnostic{
			Query:        query,
			Hits:         len(hits),
			LosslessOnly: losslessOnly,
		})
		e.emit("   ↳ %d hits", len(hits))

		for i, hit := range hits {
			if i >= hitPreviewLimit {
				break
			}
			e.emit("     · %s", hit.Label())
		}

		for _, hit := range hits {
			if seen[hit.Key()] {
				continue
			}
			seen[hit.Key()] = true
			gathered = append(gathered, hit)
		}
	}

	return gathered
}

// searchSerialized funnels every search through the shared mutex.
func (e *DownloadEngine) searchSerialized(ctx context.Context, query string, losslessOnly bool) ([]models.Candidate, error) {
	e.searchMu.Lock()
	defer e.searchMu.Unlock()
	return e.search.Search(ctx, query, losslessOnly)
}

// finishDownload enforces the lossless policy and moves the landed file into
// the output directory under its final name.
func (e *DownloadEngine) finishDownload(src string, track models.Track, outcome *models.DownloadOutcome) models.DownloadOutcome {
	if !formatter.IsLosslessPath(src) {
		if !e.allowLossy {
			outcome.Message = fmt.Sprintf("Downloaded file not lossless: %s", filepath.Ext(src))
			e.emit(" ! %s", outcome.Message)
			return *outcome
		}
		e.logger.Info("accepting lossy download", "file", filepath.Base(src))
	}

	dst, err := e.placeFile(src, track)
	if err != nil {
		outcome.Message = fmt.Sprintf("Failed to move download: %v", err)
		e.emit(" ! %s", outcome.Message)
		return *outcome
	}

	outcome.Success = true
	outcome.Message = "OK"
	outcome.Path = dst
	e.emit(" ✓ Saved %s", filepath.Base(dst))
	return *outcome
}

// placeFile renames src into the output directory and prunes the now-empty
// peer directories slskd left behind.
func (e *DownloadEngine) placeFile(src string, track models.Track) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := formatter.SafeFilename(fmt.Sprintf("%s - %s%s", track.Artist, track.Title, filepath.Ext(src)))
	dst := shared.UniquePath(filepath.Join(e.outputDir, name))

	if err := shared.MoveFile(src, dst); err != nil {
		return "", err
	}

	shared.PruneEmptyAncestors(e.downloadDir, filepath.Dir(src))
	return dst, nil
}

// emit mirrors a pipeline line to the logger and the progress stream.
func (e *DownloadEngine) emit(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	e.logger.Debug(message)
	sendUpdate(e.progress, logUpdate("%s", message))
}

func appendQuery(outcome *models.DownloadOutcome, query string) {
	for _, existing := range outcome.Queries {
		if existing == query {
			return
		}
	}
	outcome.Queries = append(outcome.Queries, query)
}
