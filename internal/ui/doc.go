// Package ui implements the live job monitor using bubbletea's Elm architecture.
//
// [Monitor] renders one download run end to end: the current track, a
// transfer progress bar, a tail of pipeline log lines, and running tallies
// while the job is active, then a summary with a scrollable list of failed
// tracks once it finishes.
//
// Events arrive on a [tasks.ProgressUpdate] channel fed by the job runner
// and are folded into display state; the terminal [RunResult] arrives on a
// second channel once the run goroutine returns. Key presses drive the
// shared [tasks.Control]: p pauses, r resumes, c cancels, and q cancels then
// quits (ctrl+c force-quits without waiting for the current track).
package ui
