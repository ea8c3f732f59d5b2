package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/desertthunder/spotiseek/internal/formatter"
)

// Model defines the base interface for all persistent models in the download service.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Track is a single playlist entry as reported by the playlist provider.
// Immutable once fetched.
type Track struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Album  string `json:"album,omitempty"`
}

// QueryStrings returns the search queries for the track: "artist - title"
// first, then "artist - title album" when the album is known.
func (t Track) QueryStrings() []string {
	base := fmt.Sprintf("%s - %s", t.Artist, t.Title)
	queries := []string{base}
	if t.Album != "" {
		queries = append(queries, base+" "+t.Album)
	}
	return queries
}

// Display renders the track for logs and progress lines.
func (t Track) Display() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// Playlist holds a playlist's name and its ordered tracks.
type Playlist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// Candidate is a single remote file offered by a peer. Candidates are never
// mutated after construction; the ranking key is a pure function of the
// fields.
type Candidate struct {
	Username      string  `json:"username"`
	Filename      string  `json:"filename"`
	Size          int64   `json:"size"`
	ExtScore      int     `json:"ext_score"`
	ReportedSpeed float64 `json:"reported_speed"`
	QueueLength   int     `json:"queue_length"`
}

// Key returns the identity used for deduplication across queries.
func (c Candidate) Key() string {
	return c.Username + "|" + c.Filename
}

// Label renders the candidate for previews and failure diagnostics,
// e.g. "peer | q=0 | v=1024 KiB/s | Artist - Title.flac". Speed shows "?"
// when the peer reported none.
func (c Candidate) Label() string {
	speed := "?"
	if c.ReportedSpeed > 0 {
		speed = fmt.Sprintf("%.0f KiB/s", c.ReportedSpeed/1024)
	}
	return fmt.Sprintf("%s | q=%d | v=%s | %s", c.Username, c.QueueLength, speed, formatter.BasenameAny(c.Filename))
}

// SortCandidates orders candidates best first: preferred extension, then
// reported speed, then the shorter peer queue. The sort is stable so
// discovery order breaks remaining ties.
func SortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ExtScore != b.ExtScore {
			return a.ExtScore > b.ExtScore
		}
		if a.ReportedSpeed != b.ReportedSpeed {
			return a.ReportedSpeed > b.ReportedSpeed
		}
		return a.QueueLength < b.QueueLength
	})
}

// SearchDiagnostic records one search call made while processing a track.
type SearchDiagnostic struct {
	Query        string `json:"query"`
	Hits         int    `json:"hits"`
	LosslessOnly bool   `json:"lossless_only"`
}

// DownloadOutcome is the terminal result of processing one track. Created
// once per track, never mutated afterwards.
type DownloadOutcome struct {
	Track       Track              `json:"track"`
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	Path        string             `json:"path,omitempty"`
	Queries     []string           `json:"queries,omitempty"`
	Candidates  []string           `json:"candidates,omitempty"`
	Diagnostics []SearchDiagnostic `json:"diagnostics,omitempty"`
}
