package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotiseek/internal/formatter"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/urfave/cli/v3"
)

// searchCommand runs a one-off Soulseek search without downloading anything.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search the Soulseek network and print ranked candidates",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "query",
			},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "lossless-only",
				Usage: "Drop lossy results",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "formats",
				Usage: "Comma-separated format preference, best first",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum candidates to print",
				Value: 5,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.SearchOnce,
	}
}

// SearchOnce searches the Soulseek network for a query and prints ranked candidates.
func (r *Runner) SearchOnce(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	// Only the slskd connection is needed here, so full config validation
	// (Spotify credentials, download dir) would reject otherwise fine setups.
	if r.config.Slskd.Host == "" || r.config.Slskd.APIKey == "" {
		return fmt.Errorf("%w: slskd.host and slskd.api_key", shared.ErrMissingConfig)
	}

	formats := r.config.Downloads.Formats
	if cmd.IsSet("formats") {
		formats = cmd.String("formats")
	}
	preference := formatter.ApplyLossyPolicy(
		formatter.NormalizePreference(formats),
		!cmd.Bool("lossless-only"),
	)

	client := r.slskd(preference)
	candidates, err := client.Search(ctx, query, cmd.Bool("lossless-only"))
	if err != nil {
		return err
	}

	if limit := cmd.Int("limit"); limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(candidates, true)
	}

	if len(candidates) == 0 {
		return r.writePlain("No results.\n")
	}

	for i, candidate := range candidates {
		if err := r.writePlain("%2d. %s\n", i+1, candidate.Label()); err != nil {
			return err
		}
	}
	return nil
}
