package tasks

import "sync/atomic"

// RunState is the control state of a batch run.
type RunState int32

const (
	StateRunning RunState = iota
	StatePaused
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCancelled:
		return "cancelled"
	default:
		return ""
	}
}

// Control carries pause and cancel signals for a batch run.
//
// Workers poll it cooperatively before starting each track; nothing in flight
// is forcibly interrupted. Cancellation is terminal and wins over pause.
type Control struct {
	state atomic.Int32
}

// NewControl creates a Control in the running state.
func NewControl() *Control {
	return &Control{}
}

// Pause suspends scheduling of new tracks. No-op once cancelled.
func (c *Control) Pause() {
	c.state.CompareAndSwap(int32(StateRunning), int32(StatePaused))
}

// Resume lifts a pause. No-op once cancelled.
func (c *Control) Resume() {
	c.state.CompareAndSwap(int32(StatePaused), int32(StateRunning))
}

// Cancel aborts the run before the next track starts. Irreversible.
func (c *Control) Cancel() {
	c.state.Store(int32(StateCancelled))
}

// State returns the current control state.
func (c *Control) State() RunState {
	return RunState(c.state.Load())
}

// Paused reports whether new tracks are currently suspended.
func (c *Control) Paused() bool {
	return c.State() == StatePaused
}

// Cancelled reports whether the run has been aborted.
func (c *Control) Cancelled() bool {
	return c.State() == StateCancelled
}
