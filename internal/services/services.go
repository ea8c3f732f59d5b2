// package services implements the pipeline's external collaborators:
// Spotify for playlist metadata and slskd for Soulseek search and transfers.
package services

import (
	"context"

	"github.com/desertthunder/spotiseek/internal/models"
)

// PlaylistProvider resolves a user-supplied playlist reference to the
// playlist's name and ordered tracks. Pagination is the implementation's
// concern; callers see the complete list.
type PlaylistProvider interface {
	FetchPlaylist(ctx context.Context, ref string) (*models.Playlist, error)
}

// SearchClient locates download candidates for a query, returned best first.
// A client spaces its own calls to respect upstream rate limits, but is not
// safe for overlapping in-flight searches: concurrent callers serialize
// through a shared mutex at the orchestration layer.
type SearchClient interface {
	Search(ctx context.Context, query string, losslessOnly bool) ([]models.Candidate, error)
}

// TransferClient enqueues remote files for download and polls the transfers
// to a terminal state.
type TransferClient interface {
	Enqueue(ctx context.Context, username, filename string, size int64) error
	AwaitCompletion(ctx context.Context, opts AwaitOptions) (bool, *TransferRecord, error)
}
