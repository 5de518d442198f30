package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/diffreview/internal/ai/langchain"
	"github.com/diffreview/internal/config"
	"github.com/diffreview/internal/github"
	"github.com/diffreview/internal/logging"
	"github.com/diffreview/internal/review"
)

// ReviewCommand returns the review command: a one-shot synchronous review
// of a PR or commit URL printed to stdout.
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review a GitHub pull request or commit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "template",
				Aliases: []string{"t"},
				Usage:   "Custom review template text",
			},
			&cli.BoolFlag{
				Name:  "no-file-details",
				Usage: "Skip the per-file detailed analysis stage",
			},
			&cli.BoolFlag{
				Name:  "no-summary",
				Usage: "Skip the executive summary stage",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall review timeout",
				Value: 10 * time.Minute,
			},
		},
		ArgsUsage: "URL",
		Action:    runReview,
	}
}

func runReview(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: PR or commit URL")
	}
	sourceURL := c.Args().Get(0)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	if c.Bool("no-file-details") {
		cfg.Review.IncludeFileDetails = false
	}
	if c.Bool("no-summary") {
		cfg.Review.IncludeSummary = false
	}
	template := c.String("template")
	if template == "" {
		template = cfg.Template
	}

	fetcher := github.NewClient(cfg.GitHub.Token, logger)

	generator, err := langchain.New(langchain.Config{
		Backend:   cfg.AI.Backend,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		BaseURL:   cfg.AI.BaseURL,
		MaxTokens: cfg.AI.MaxTokens,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	pipeline := review.NewPipeline(cfg.Review, fetcher, generator, logger)
	report := pipeline.Run(ctx, sourceURL, template)

	fmt.Println(report.Review)

	if len(report.Recommendations) > 0 {
		fmt.Println("\n## Recommendations")
		for i, rec := range report.Recommendations {
			fmt.Printf("%d. %s\n", i+1, rec)
		}
	}

	if report.Summary != "" {
		fmt.Println("\n## Summary")
		fmt.Println(report.Summary)
	}

	if report.Error != "" {
		return fmt.Errorf("review finished with error: %s", report.Error)
	}
	return nil
}
