package models

import (
	"fmt"
	"time"
)

// Job statuses. A job walks pending → running (↔ paused) → completed,
// failed, or cancelled.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusPaused    = "paused"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

var validJobStatuses = map[string]bool{
	JobStatusPending:   true,
	JobStatusRunning:   true,
	JobStatusPaused:    true,
	JobStatusCompleted: true,
	JobStatusFailed:    true,
	JobStatusCancelled: true,
}

// TerminalJobStatus reports whether a job in the given status will never
// progress further.
func TerminalJobStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is a persisted playlist download run. It implements [Model] and is
// stored through a Repository; the task runner updates it as the batch
// progresses.
type Job struct {
	id              string
	sequence        int
	playlistID      string
	playlistName    string
	status          string
	totalTracks     int
	processedTracks int
	okCount         int
	failCount       int
	currentIndex    int
	currentTrack    string
	outputDir       string
	errorMessage    string
	startedAt       *time.Time
	completedAt     *time.Time
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
}

// NewJob creates a pending job for a playlist with the given sequence number.
func NewJob(sequence int, playlistID string) *Job {
	now := time.Now()
	return &Job{
		sequence:   sequence,
		playlistID: playlistID,
		status:     JobStatusPending,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (j *Job) ID() string            { return j.id }
func (j *Job) SetID(id string)       { j.id = id }
func (j *Job) Sequence() int         { return j.sequence }
func (j *Job) SetSequence(n int)     { j.sequence = n }
func (j *Job) PlaylistID() string    { return j.playlistID }
func (j *Job) CreatedAt() time.Time  { return j.createdAt }
func (j *Job) UpdatedAt() time.Time  { return j.updatedAt }
func (j *Job) SetCreatedAt(t time.Time) { j.createdAt = t }
func (j *Job) SetUpdatedAt(t time.Time) { j.updatedAt = t }

func (j *Job) PlaylistName() string        { return j.playlistName }
func (j *Job) SetPlaylistName(name string) { j.playlistName = name }

func (j *Job) Status() string          { return j.status }
func (j *Job) SetStatus(status string) { j.status = status }

func (j *Job) TotalTracks() int       { return j.totalTracks }
func (j *Job) SetTotalTracks(n int)   { j.totalTracks = n }
func (j *Job) ProcessedTracks() int   { return j.processedTracks }
func (j *Job) SetProcessedTracks(n int) { j.processedTracks = n }

func (j *Job) OkCount() int        { return j.okCount }
func (j *Job) SetOkCount(n int)    { j.okCount = n }
func (j *Job) FailCount() int      { return j.failCount }
func (j *Job) SetFailCount(n int)  { j.failCount = n }

func (j *Job) CurrentIndex() int          { return j.currentIndex }
func (j *Job) SetCurrentIndex(n int)      { j.currentIndex = n }
func (j *Job) CurrentTrack() string       { return j.currentTrack }
func (j *Job) SetCurrentTrack(name string) { j.currentTrack = name }

func (j *Job) OutputDir() string        { return j.outputDir }
func (j *Job) SetOutputDir(dir string)  { j.outputDir = dir }
func (j *Job) ErrorMessage() string     { return j.errorMessage }
func (j *Job) SetErrorMessage(m string) { j.errorMessage = m }

func (j *Job) StartedAt() *time.Time          { return j.startedAt }
func (j *Job) SetStartedAt(t *time.Time)      { j.startedAt = t }
func (j *Job) CompletedAt() *time.Time        { return j.completedAt }
func (j *Job) SetCompletedAt(t *time.Time)    { j.completedAt = t }
func (j *Job) DeletedAt() *time.Time          { return j.deletedAt }
func (j *Job) SetDeletedAt(t *time.Time)      { j.deletedAt = t }

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return TerminalJobStatus(j.status)
}

// Validate checks that the job carries a playlist reference and a known status.
func (j *Job) Validate() error {
	if j.playlistID == "" {
		return fmt.Errorf("job requires a playlist id")
	}
	if !validJobStatuses[j.status] {
		return fmt.Errorf("unknown job status %q", j.status)
	}
	return nil
}
