// package main is the entrypoint to the application
package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warnf("failed to load config.toml, using defaults: %v", err)
		}
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "spotiseek",
		Usage:    "Download Spotify playlists losslessly from the Soulseek network",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrJobCancelled) {
			logger.Warn("job cancelled")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
