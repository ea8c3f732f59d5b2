package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limited by upstream")
	ErrTimeout            = fmt.Errorf("operation timed out")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Download pipeline errors
	ErrSearchFailed    = fmt.Errorf("search failed")
	ErrEnqueueRejected = fmt.Errorf("download enqueue rejected")
	ErrNoSources       = fmt.Errorf("no sources found")
	ErrNotLossless     = fmt.Errorf("downloaded file is not lossless")
	ErrFileNotFound    = fmt.Errorf("downloaded file not found")

	// Job errors
	ErrJobNotFound  = fmt.Errorf("job not found")
	ErrJobCancelled = fmt.Errorf("job cancelled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
