package tasks

import (
	"fmt"

	"github.com/desertthunder/spotiseek/internal/models"
)

// ProgressUpdate represents a progress event during a batch download.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Kind    UpdateKind // Event kind
	Message string     // Human-readable message for display

	Current int          // 1-based track index (TrackStarted, TrackDone)
	Total   int          // Total tracks in the batch
	Track   models.Track // Track the event refers to

	Outcome *models.DownloadOutcome // Terminal track result (TrackDone only)
	Ok      int                     // Running success tally (TrackDone, BatchDone)
	Fail    int                     // Running failure tally (TrackDone, BatchDone)

	State   string  // Transfer state reported by slskd (TransferState only)
	Percent float64 // Transfer completion 0-100 (TransferState only)
}

// Event kind enumeration
type UpdateKind int

const (
	LogLine UpdateKind = iota
	TrackStarted
	TrackDone
	TransferState
	BatchDone
)

func (k UpdateKind) String() string {
	switch k {
	case LogLine:
		return "log_line"
	case TrackStarted:
		return "track_started"
	case TrackDone:
		return "track_done"
	case TransferState:
		return "transfer_state"
	case BatchDone:
		return "batch_done"
	default:
		return ""
	}
}

func logUpdate(format string, args ...any) ProgressUpdate {
	return ProgressUpdate{
		Kind:    LogLine,
		Message: fmt.Sprintf(format, args...),
	}
}

func trackStartedUpdate(current, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Kind:    TrackStarted,
		Current: current,
		Total:   total,
		Track:   track,
		Message: fmt.Sprintf("[%d/%d] %s", current, total, track.Display()),
	}
}

func trackDoneUpdate(current, total int, outcome *models.DownloadOutcome, ok, fail int) ProgressUpdate {
	return ProgressUpdate{
		Kind:    TrackDone,
		Current: current,
		Total:   total,
		Track:   outcome.Track,
		Outcome: outcome,
		Ok:      ok,
		Fail:    fail,
		Message: outcome.Message,
	}
}

func transferStateUpdate(track models.Track, state string, percent float64) ProgressUpdate {
	return ProgressUpdate{
		Kind:    TransferState,
		Track:   track,
		State:   state,
		Percent: percent,
		Message: fmt.Sprintf("%s %.1f%%", state, percent),
	}
}

func batchDoneUpdate(ok, fail int) ProgressUpdate {
	return ProgressUpdate{
		Kind:    BatchDone,
		Ok:      ok,
		Fail:    fail,
		Message: fmt.Sprintf("Finished: %d success, %d failed.", ok, fail),
	}
}

// sendUpdate sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendUpdate(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}
