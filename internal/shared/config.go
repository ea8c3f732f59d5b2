package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify   SpotifyConfig   `toml:"spotify"`
	Slskd     SlskdConfig     `toml:"slskd"`
	Downloads DownloadsConfig `toml:"downloads"`
	Database  DatabaseConfig  `toml:"database"`
}

// SpotifyConfig contains Spotify client-credentials settings.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// SlskdConfig contains connection settings for the slskd daemon.
type SlskdConfig struct {
	Host            string `toml:"host"`
	APIKey          string `toml:"api_key"`
	DownloadDir     string `toml:"download_dir"`
	SearchTimeoutMS int    `toml:"search_timeout_ms"`
	ResponseLimit   int    `toml:"response_limit"`
}

// SearchTimeout returns the search timeout as a [time.Duration].
func (c SlskdConfig) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutMS) * time.Millisecond
}

// DownloadsConfig contains download pipeline settings.
type DownloadsConfig struct {
	OutputRoot       string `toml:"output_root"`
	Formats          string `toml:"formats"`
	AllowLossy       bool   `toml:"allow_lossy"`
	MaxRetries       int    `toml:"max_retries"`
	DownloadTimeoutS int    `toml:"download_timeout_s"`
	PollIntervalS    int    `toml:"poll_interval_s"`
	Concurrency      int    `toml:"concurrency"`
	TrackLimit       int    `toml:"track_limit"`
}

// DownloadTimeout returns the per-candidate download timeout as a [time.Duration].
func (c DownloadsConfig) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutS) * time.Second
}

// PollInterval returns the transfer polling interval as a [time.Duration].
func (c DownloadsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalS) * time.Second
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidArgument)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the settings required for a download run are present.
func (c *Config) Validate() error {
	var missing []string
	if c.Slskd.Host == "" {
		missing = append(missing, "slskd.host")
	}
	if c.Slskd.APIKey == "" {
		missing = append(missing, "slskd.api_key")
	}
	if c.Slskd.DownloadDir == "" {
		missing = append(missing, "slskd.download_dir")
	}
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		missing = append(missing, "spotify.client_id/client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}
