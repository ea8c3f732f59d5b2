// Package repositories implements SQLite persistence for playlist download jobs.
//
// [JobRepository] handles CRUD operations with atomic sequence generation for human-readable ordering.
// It supports soft deletes via deleted_at timestamps and excludes deleted records from queries by default.
//
// Sequence numbers provide stable, human-readable ordering (e.g., job #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// Retention pruning uses the "finished_before" list criterion to select terminal
// jobs whose completed_at predates a cutoff, so callers can remove stale runs and
// their output directories in one pass.
package repositories
