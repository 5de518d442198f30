// Package jobqueue runs review jobs on a River queue backed by Postgres.
// The API server enqueues one job per accepted review request; the worker
// runs the pipeline and persists the report in the task store.
package jobqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog"

	"github.com/diffreview/internal/ai/langchain"
	"github.com/diffreview/internal/config"
	"github.com/diffreview/internal/github"
	"github.com/diffreview/internal/logging"
	"github.com/diffreview/internal/review"
)

// ReviewJobArgs are the arguments for one review job.
type ReviewJobArgs struct {
	TaskID string `json:"task_id"`
	URL    string `json:"url"`
	// GitHubToken, when set, overrides the configured token for this job.
	GitHubToken string `json:"github_token,omitempty"`
	Template    string `json:"template,omitempty"`
	// Nil means "use the configured default".
	IncludeFileDetails *bool `json:"include_file_details,omitempty"`
	IncludeSummary     *bool `json:"include_summary,omitempty"`
}

// Kind returns the job kind for River.
func (ReviewJobArgs) Kind() string {
	return "pr_review"
}

// ReviewWorker runs one review pipeline per job. The pipeline never
// returns an error; an errored run is a report with Error set, which the
// worker records as a failed task without retrying.
type ReviewWorker struct {
	river.WorkerDefaults[ReviewJobArgs]
	cfg    *config.Config
	store  *TaskStore
	logger zerolog.Logger
}

// Work executes the review and persists the report.
func (w *ReviewWorker) Work(ctx context.Context, job *river.Job[ReviewJobArgs]) error {
	args := job.Args
	logger := w.logger.With().Str("task_id", args.TaskID).Logger()
	logger.Info().Str("url", args.URL).Msg("starting review job")

	if err := w.store.SetStatus(ctx, args.TaskID, StatusRunning); err != nil {
		return fmt.Errorf("failed to mark task running: %w", err)
	}

	token := args.GitHubToken
	if token == "" {
		token = w.cfg.GitHub.Token
	}
	fetcher := github.NewClient(token, logger)

	generator, err := langchain.New(langchain.Config{
		Backend:   w.cfg.AI.Backend,
		APIKey:    w.cfg.AI.APIKey,
		Model:     w.cfg.AI.Model,
		BaseURL:   w.cfg.AI.BaseURL,
		MaxTokens: w.cfg.AI.MaxTokens,
	}, logger)
	if err != nil {
		if serr := w.store.SetError(ctx, args.TaskID, err.Error()); serr != nil {
			logger.Error().Err(serr).Msg("failed to record task error")
		}
		return fmt.Errorf("failed to initialize AI provider: %w", err)
	}

	template := args.Template
	if template == "" {
		template = w.cfg.Template
	}

	reviewCfg := w.cfg.Review
	if args.IncludeFileDetails != nil {
		reviewCfg.IncludeFileDetails = *args.IncludeFileDetails
	}
	if args.IncludeSummary != nil {
		reviewCfg.IncludeSummary = *args.IncludeSummary
	}

	pipeline := review.NewPipeline(reviewCfg, fetcher, generator, logger)
	report := pipeline.Run(ctx, args.URL, template)

	if err := w.store.SaveReport(ctx, args.TaskID, report); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	logger.Info().Bool("errored", report.Error != "").Msg("review job finished")
	return nil
}

// JobQueue manages the River client and its workers.
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	store  *TaskStore
}

// New connects to Postgres, prepares the task store, and builds the River
// client with the review worker registered.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*JobQueue, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	store := NewTaskStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate task store: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &ReviewWorker{cfg: cfg, store: store, logger: logging.Component(logger, "worker")})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.Review.MaxConcurrentFileAnalyses * 2},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool, store: store}, nil
}

// Store exposes the task store for read paths (status/result endpoints).
func (jq *JobQueue) Store() *TaskStore {
	return jq.store
}

// Start starts the queue workers.
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the workers and closes the pool.
func (jq *JobQueue) Stop(ctx context.Context) error {
	err := jq.client.Stop(ctx)
	jq.pool.Close()
	return err
}

// EnqueueReview records a pending task and queues its job.
func (jq *JobQueue) EnqueueReview(ctx context.Context, args ReviewJobArgs) error {
	if err := jq.store.CreateTask(ctx, args.TaskID, args.URL); err != nil {
		return fmt.Errorf("failed to create task record: %w", err)
	}

	if _, err := jq.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to queue review job: %w", err)
	}

	return nil
}
