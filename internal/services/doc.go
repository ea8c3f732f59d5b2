// Package services defines the interfaces for the pipeline's external
// collaborators and implements them for Spotify and slskd.
//
// # Interfaces
//
// [PlaylistProvider] resolves a playlist reference to its tracks,
// [SearchClient] finds download candidates on the Soulseek network, and
// [TransferClient] enqueues and awaits transfers. The download engine is
// written against the interfaces so tests substitute in-memory fakes.
//
// # Spotify Implementation
//
// [SpotifyService] reads public playlists through the OAuth2
// client-credentials grant; no user consent flow or token storage is
// involved. The oauth2 client refreshes the app token transparently.
// Playlist pages are walked at 100 items per request and podcast episodes
// are dropped during mapping, since they have no peers to search for.
//
// # Slskd Implementation
//
// [SlskdClient] implements both [SearchClient] and [TransferClient] against
// a slskd daemon's HTTP API, authenticated by the X-API-Key header. Search
// submission backs off on 429/409 responses, results are polled until the
// daemon marks the search complete, and hit rows are normalized across the
// field-name variations daemon versions disagree on. Transfer polling
// treats a file observed on disk as authoritative success regardless of the
// reported state.
//
// # Raw Passthrough
//
// [APIService] forwards raw GET/POST requests to the daemon for the `api`
// debugging commands, reporting status, headers, and body without
// interpretation.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrPlaylistNotFound] : playlist ID not found or private
//   - [shared.ErrSearchFailed] : search submission or result fetch failed
//   - [shared.ErrRateLimited] : daemon throttled repeated submissions
//   - [shared.ErrEnqueueRejected] : peer rejected the download request
package services
