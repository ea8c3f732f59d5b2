// Package models defines domain entities and persistence interfaces for the
// playlist download service.
//
// The package contains two categories of types:
//
// 1. Pipeline values: Immutable structs passed between the search, ranking,
// and download stages
//   - [Track] : A playlist entry with the fields needed to build search queries
//   - [Playlist] : A playlist's name and its ordered tracks
//   - [Candidate] : A remote file offered by a peer, with its ranking inputs
//   - [SearchDiagnostic] : One search call's query and hit count
//   - [DownloadOutcome] : The terminal result of processing one track
//
// 2. Persistent entities: Database-backed models with full lifecycle management
//   - [Job] : A playlist download run tracking progress, tallies, and output
//
// Persistent entities implement the [Model] interface providing ID access,
// timestamps, and validation. The [Repository] interface defines standard
// CRUD operations with soft delete support.
package models
