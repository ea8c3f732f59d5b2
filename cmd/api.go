package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/spotiseek/internal/services"
	"github.com/desertthunder/spotiseek/internal/shared"
	"github.com/urfave/cli/v3"
)

// daemon builds a raw passthrough client for the configured slskd instance.
func (r *Runner) daemon() *services.APIService {
	return services.NewAPIService(r.config.Slskd.Host, r.config.Slskd.APIKey, r.httpClient)
}

// APIGet makes a direct GET request to the slskd daemon
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	path := cmd.StringArg("path")
	useJSON := cmd.Bool("json")

	r.logger.Info("GET request", "path", path)

	resp, err := r.daemon().Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if useJSON {
		if resp.IsJSON {
			return r.writeJSON(resp.JSONData, false)
		}
		r.output.Write(resp.Body)
		r.output.Write([]byte("\n"))
		return nil
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, true)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIPost makes a direct POST request to the slskd daemon
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	path := cmd.StringArg("path")
	data := cmd.String("data")

	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	r.logger.Info("POST request", "path", path)

	var jsonTest any
	if err := json.Unmarshal([]byte(data), &jsonTest); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}

	resp, err := r.daemon().Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, true)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIDump fetches and displays a snapshot of the daemon's state.
func (r *Runner) APIDump(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	pretty := cmd.Bool("pretty")
	save := cmd.Bool("save")
	api := r.daemon()

	r.logger.Info("dumping daemon state")
	r.writePlain("Fetching slskd state...\n\n")

	type DumpData struct {
		Session   any   `json:"session,omitempty"`
		Server    any   `json:"server,omitempty"`
		Downloads any   `json:"downloads,omitempty"`
		Searches  any   `json:"searches,omitempty"`
		Errors    []any `json:"errors,omitempty"`
	}

	dump := DumpData{
		Errors: []any{},
	}

	fetch := func(label, endpoint string, into *any) {
		r.writePlain("Fetching %s...\n", label)
		resp, err := api.Get(ctx, endpoint)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			*into = resp.JSONData
			return
		}
		var detail string
		if err != nil {
			detail = err.Error()
		} else {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		dump.Errors = append(dump.Errors, map[string]string{"endpoint": endpoint, "error": detail})
		r.logger.Warn("failed to fetch daemon state", "endpoint", endpoint, "error", detail)
	}

	fetch("session", "/api/v0/session", &dump.Session)
	fetch("server connection", "/api/v0/server", &dump.Server)
	fetch("downloads", "/api/v0/transfers/downloads", &dump.Downloads)
	fetch("searches", "/api/v0/searches", &dump.Searches)

	r.writePlain("\n✓ Dump complete\n\n")

	if save {
		saveFile := "slskd_dump.json"
		data, err := shared.MarshalJSON(dump, true)
		if err != nil {
			return fmt.Errorf("failed to marshal dump: %w", err)
		}
		if err := os.WriteFile(saveFile, data, 0644); err != nil {
			r.logger.Warn("failed to save dump", "error", err)
		} else {
			r.logger.Info("dump saved", "file", saveFile)
			r.writePlain("✓ Dump saved to %s\n\n", saveFile)
		}
	}

	return r.writeJSON(dump, pretty)
}

// apiCommand handles direct debug calls against the slskd daemon
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the slskd daemon",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET to the daemon, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "dump",
				Usage: "Snapshot of daemon state (session, server, transfers, searches)",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save dump to slskd_dump.json",
						Value: false,
					},
				},
				Action: r.APIDump,
			},
		},
	}
}
