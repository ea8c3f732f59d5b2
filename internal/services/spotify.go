// Spotify Web API implementation of [PlaylistProvider].
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/models"
	"github.com/desertthunder/spotiseek/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	playlistPageSize = 100
)

// SpotifyArtist is the artist slice of a playlist item.
type SpotifyArtist struct {
	Name string `json:"name"`
}

// SpotifyAlbum carries the album name used for query building.
type SpotifyAlbum struct {
	Name string `json:"name"`
}

// SpotifyTrack is the track payload inside a playlist item. Type
// distinguishes real tracks from podcast episodes.
type SpotifyTrack struct {
	Type    string          `json:"type"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
}

type playlistItem struct {
	Track *SpotifyTrack `json:"track"`
}

type playlistPage struct {
	Items []playlistItem `json:"items"`
	Next  *string        `json:"next"`
}

// SpotifyService reads public playlists through the client-credentials
// grant; no user consent flow is involved.
type SpotifyService struct {
	httpClient *http.Client
	baseURL    string
}

// SpotifyOpts configures a [SpotifyService]. When HTTPClient is set it is
// used as-is (tests); otherwise an oauth2 client is built from the
// credentials.
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	BaseURL      string
}

var _ PlaylistProvider = (*SpotifyService)(nil)

// NewSpotifyService creates a Spotify playlist provider.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		if opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
		}
		cfg := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     spotifyTokenURL,
		}
		opts.HTTPClient = cfg.Client(context.Background())
	}
	return &SpotifyService{httpClient: opts.HTTPClient, baseURL: opts.BaseURL}, nil
}

// doRequest makes an authenticated GET request and decodes the JSON response
// into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: spotify returned 404", shared.ErrPlaylistNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// FetchPlaylist resolves ref (share URL, spotify: URI, or bare id) and
// returns the playlist's name with its ordered tracks. Pages are walked
// transparently; podcast episodes are skipped since they have no peers to
// search for.
func (s *SpotifyService) FetchPlaylist(ctx context.Context, ref string) (*models.Playlist, error) {
	pid := formatter.ExtractPlaylistID(ref)

	var meta struct {
		Name string `json:"name"`
	}
	if err := s.doRequest(ctx, fmt.Sprintf("/playlists/%s?fields=name", pid), &meta); err != nil {
		return nil, err
	}

	playlist := &models.Playlist{ID: pid, Name: meta.Name}
	fields := url.QueryEscape("items(track(name,type,artists(name),album(name))),next")

	for offset := 0; ; offset += playlistPageSize {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d&fields=%s",
			pid, playlistPageSize, offset, fields)

		var page playlistPage
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.Type != "track" {
				continue
			}
			track := models.Track{Title: item.Track.Name, Album: item.Track.Album.Name}
			if len(item.Track.Artists) > 0 {
				track.Artist = item.Track.Artists[0].Name
			} else {
				track.Artist = "Unknown Artist"
			}
			playlist.Tracks = append(playlist.Tracks, track)
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}

	return playlist, nil
}
