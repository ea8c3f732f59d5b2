// Package tasks orchestrates playlist downloads with real-time progress reporting.
//
// # Core Operations
//
// The pipeline is built from three layers:
//
//  1. [DownloadEngine.ProcessTrack] : One track, start to finish
//     - Fans the track's queries out to the search client (lossless first,
//       lossy fallback when allowed)
//     - Ranks the deduplicated candidates by format, speed, and queue depth
//     - Walks candidates best-first, enqueueing and awaiting transfers until
//       one lands or the retry budget is spent
//     - Moves the landed file into the output directory under a sanitized,
//       collision-safe name
//
//  2. [Orchestrator.Run] : A playlist's tracks through a bounded worker pool
//     - Parallelizes the transfer phases while searches stay serialized
//     - Honors [Control] pause/cancel signals at track boundaries
//     - Aggregates per-track outcomes into final tallies
//
//  3. [JobRunner.Run] : A batch wrapped in a persisted [models.Job]
//     - Creates the row, folds progress events into row updates, finalizes
//       the status, and cleans up output on cancellation
//     - [JobRunner.PruneExpired] removes finished jobs past their retention
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct carries an event kind, track counters, running
// tallies, and transfer state for UI rendering. Updates use select with
// default to prevent blocking.
package tasks
