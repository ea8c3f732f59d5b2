package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
)

// JobRepository implements models.Repository[*models.Job] for playlist download runs.
//
// Handles job CRUD operations with soft delete support, status-based queries,
// and retention lookups for pruning finished runs.
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job into the database with generated ID and sequence
func (r *JobRepository) Create(job *models.Job) error {
	sequence, err := NextSequence(r.db, "jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)
	job.SetSequence(sequence)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, sequence, playlist_id, playlist_name, status, total_tracks,
			processed_tracks, ok_count, fail_count, current_index,
			current_track, output_dir, error_message, started_at,
			completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var playlistName any = job.PlaylistName()
	if playlistName == "" {
		playlistName = nil
	}

	var currentTrack any = job.CurrentTrack()
	if currentTrack == "" {
		currentTrack = nil
	}

	var outputDir any = job.OutputDir()
	if outputDir == "" {
		outputDir = nil
	}

	var errorMessage any = job.ErrorMessage()
	if errorMessage == "" {
		errorMessage = nil
	}

	_, err = r.db.Exec(query,
		id,
		sequence,
		job.PlaylistID(),
		playlistName,
		job.Status(),
		job.TotalTracks(),
		job.ProcessedTracks(),
		job.OkCount(),
		job.FailCount(),
		job.CurrentIndex(),
		currentTrack,
		outputDir,
		errorMessage,
		job.StartedAt(),
		job.CompletedAt(),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID, excluding soft-deleted jobs
func (r *JobRepository) Get(id string) (*models.Job, error) {
	query := `
		SELECT
			id, sequence, playlist_id, playlist_name, status, total_tracks,
			processed_tracks, ok_count, fail_count, current_index,
			current_track, output_dir, error_message, started_at,
			completed_at, created_at, updated_at, deleted_at
		FROM jobs
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// Update modifies an existing job in the database
func (r *JobRepository) Update(job *models.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE jobs
		SET playlist_name = ?, status = ?, total_tracks = ?,
			processed_tracks = ?, ok_count = ?, fail_count = ?,
			current_index = ?, current_track = ?, output_dir = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	var playlistName any = job.PlaylistName()
	if playlistName == "" {
		playlistName = nil
	}

	var currentTrack any = job.CurrentTrack()
	if currentTrack == "" {
		currentTrack = nil
	}

	var outputDir any = job.OutputDir()
	if outputDir == "" {
		outputDir = nil
	}

	var errorMessage any = job.ErrorMessage()
	if errorMessage == "" {
		errorMessage = nil
	}

	result, err := r.db.Exec(query,
		playlistName,
		job.Status(),
		job.TotalTracks(),
		job.ProcessedTracks(),
		job.OkCount(),
		job.FailCount(),
		job.CurrentIndex(),
		currentTrack,
		outputDir,
		errorMessage,
		job.StartedAt(),
		job.CompletedAt(),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, job.ID())
	}

	return nil
}

// Delete soft-deletes a job by ID
func (r *JobRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE jobs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	return nil
}

// List retrieves all jobs matching the given criteria, excluding soft-deleted jobs.
//
// Supported criteria: "status" and "playlist_id" (string equality), and
// "finished_before" (time.Time) which selects terminal jobs completed before
// the given cutoff. Results are ordered newest first.
func (r *JobRepository) List(criteria map[string]any) ([]*models.Job, error) {
	query := `
		SELECT
			id, sequence, playlist_id, playlist_name, status, total_tracks,
			processed_tracks, ok_count, fail_count, current_index,
			current_track, output_dir, error_message, started_at,
			completed_at, created_at, updated_at, deleted_at
		FROM jobs
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	if cutoff, ok := criteria["finished_before"].(time.Time); ok && !cutoff.IsZero() {
		query += ` AND completed_at IS NOT NULL AND completed_at < ?
			AND status IN (?, ?, ?)`
		args = append(args, cutoff, models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled)
	}

	query += " ORDER BY sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// scanOne scans a single [sql.Row] into a [models.Job]
func (r *JobRepository) scanOne(row *sql.Row) (*models.Job, error) {
	var (
		id              string
		sequence        int
		playlistID      string
		playlistName    sql.NullString
		status          string
		totalTracks     int
		processedTracks int
		okCount         int
		failCount       int
		currentIndex    int
		currentTrack    sql.NullString
		outputDir       sql.NullString
		errorMessage    sql.NullString
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &playlistID, &playlistName, &status, &totalTracks,
		&processedTracks, &okCount, &failCount, &currentIndex,
		&currentTrack, &outputDir, &errorMessage, &startedAt,
		&completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no matching row", shared.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job := models.NewJob(sequence, playlistID)
	job.SetID(id)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)

	if playlistName.Valid {
		job.SetPlaylistName(playlistName.String)
	}
	job.SetStatus(status)
	job.SetTotalTracks(totalTracks)
	job.SetProcessedTracks(processedTracks)
	job.SetOkCount(okCount)
	job.SetFailCount(failCount)
	job.SetCurrentIndex(currentIndex)
	if currentTrack.Valid {
		job.SetCurrentTrack(currentTrack.String)
	}
	if outputDir.Valid {
		job.SetOutputDir(outputDir.String)
	}
	if errorMessage.Valid {
		job.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		job.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		job.SetDeletedAt(&deletedAt.Time)
	}

	return job, nil
}

// scanRow scans a row from [sql.Rows] into a [models.Job]
func (r *JobRepository) scanRow(rows *sql.Rows) (*models.Job, error) {
	var (
		id              string
		sequence        int
		playlistID      string
		playlistName    sql.NullString
		status          string
		totalTracks     int
		processedTracks int
		okCount         int
		failCount       int
		currentIndex    int
		currentTrack    sql.NullString
		outputDir       sql.NullString
		errorMessage    sql.NullString
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := rows.Scan(
		&id, &sequence, &playlistID, &playlistName, &status, &totalTracks,
		&processedTracks, &okCount, &failCount, &currentIndex,
		&currentTrack, &outputDir, &errorMessage, &startedAt,
		&completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job := models.NewJob(sequence, playlistID)
	job.SetID(id)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)

	if playlistName.Valid {
		job.SetPlaylistName(playlistName.String)
	}
	job.SetStatus(status)
	job.SetTotalTracks(totalTracks)
	job.SetProcessedTracks(processedTracks)
	job.SetOkCount(okCount)
	job.SetFailCount(failCount)
	job.SetCurrentIndex(currentIndex)
	if currentTrack.Valid {
		job.SetCurrentTrack(currentTrack.String)
	}
	if outputDir.Valid {
		job.SetOutputDir(outputDir.String)
	}
	if errorMessage.Valid {
		job.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		job.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		job.SetDeletedAt(&deletedAt.Time)
	}

	return job, nil
}
