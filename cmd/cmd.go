// submodule cmd contains command definitions
package main

import (
	"fmt"
	"os"

	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/urfave/cli/v3"
)

// configFlag is shared by every command that reads config.toml.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// loadConfig replaces the runner's config with the file named by --config.
// A missing file at the default path keeps the current config; a missing
// file at an explicit path is an error.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if _, err := os.Stat(path); err != nil {
		if path != "config.toml" {
			return fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		}
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	r.config = config
	return nil
}
