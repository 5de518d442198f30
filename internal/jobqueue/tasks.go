package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diffreview/pkg/models"
)

// Task lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrTaskNotFound is returned when a task ID has no record.
var ErrTaskNotFound = errors.New("task not found")

// Task is one review request's stored state.
type Task struct {
	TaskID    string         `json:"task_id"`
	URL       string         `json:"url"`
	Status    string         `json:"status"`
	Report    *models.Report `json:"report,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TaskStore persists review tasks and their reports in Postgres.
type TaskStore struct {
	pool *pgxpool.Pool
}

// NewTaskStore wraps the connection pool.
func NewTaskStore(pool *pgxpool.Pool) *TaskStore {
	return &TaskStore{pool: pool}
}

// Migrate creates the review_tasks table if it does not exist.
func (s *TaskStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS review_tasks (
			task_id TEXT PRIMARY KEY,
			url TEXT NOT NULL,
			status TEXT NOT NULL,
			report JSONB,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	return err
}

// CreateTask records a new pending task.
func (s *TaskStore) CreateTask(ctx context.Context, taskID, url string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_tasks (task_id, url, status) VALUES ($1, $2, $3)
	`, taskID, url, StatusPending)
	return err
}

// SetStatus updates a task's lifecycle state.
func (s *TaskStore) SetStatus(ctx context.Context, taskID, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE review_tasks SET status = $2, updated_at = now() WHERE task_id = $1
	`, taskID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// SetError marks a task failed with an error that prevented the pipeline
// from producing any report at all.
func (s *TaskStore) SetError(ctx context.Context, taskID, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE review_tasks SET status = $2, error = $3, updated_at = now() WHERE task_id = $1
	`, taskID, StatusFailed, message)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// SaveReport stores the finished report. A report carrying an error marks
// the task failed; the report itself is kept either way so the results
// endpoint can return the error-flavored review.
func (s *TaskStore) SaveReport(ctx context.Context, taskID string, report *models.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	status := StatusCompleted
	if report.Error != "" {
		status = StatusFailed
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE review_tasks SET status = $2, report = $3, error = $4, updated_at = now() WHERE task_id = $1
	`, taskID, status, payload, report.Error)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// GetTask loads one task by ID.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	var payload []byte

	err := s.pool.QueryRow(ctx, `
		SELECT task_id, url, status, report, error, created_at, updated_at
		FROM review_tasks WHERE task_id = $1
	`, taskID).Scan(&task.TaskID, &task.URL, &task.Status, &payload, &task.Error, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	if len(payload) > 0 {
		var report models.Report
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored report: %w", err)
		}
		task.Report = &report
	}

	return &task, nil
}
