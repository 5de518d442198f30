package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/diffreview/internal/api"
	"github.com/diffreview/internal/config"
	"github.com/diffreview/internal/jobqueue"
	"github.com/diffreview/internal/logging"
)

// APICommand returns the api command: the HTTP server plus the job queue
// workers that run reviews in the background.
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Run the review API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the configured server port",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is required for the API server")
	}

	if port := c.Int("port"); port > 0 {
		cfg.Server.Port = port
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx := context.Background()
	queue, err := jobqueue.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer queue.Stop(ctx)

	logger.Info().Int("port", cfg.Server.Port).Msg("starting API server")

	server := api.NewServer(cfg.Server.Port, queue, logger)
	return server.Start()
}
