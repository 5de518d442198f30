package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/diffreview/internal/jobqueue"
	"github.com/diffreview/pkg/models"
)

// AnalyzeRequest is the body of POST /api/analyze-pr. The include flags
// default to the server's configuration when omitted.
type AnalyzeRequest struct {
	PRURL              string `json:"pr_url"`
	GitHubToken        string `json:"github_token,omitempty"`
	Template           string `json:"template,omitempty"`
	IncludeFileDetails *bool  `json:"include_file_details,omitempty"`
	IncludeSummary     *bool  `json:"include_summary,omitempty"`
}

// AnalyzeResponse acknowledges an accepted review request.
type AnalyzeResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// StatusResponse reports a task's lifecycle state.
type StatusResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ResultResponse carries the report once the task has one; Result is null
// while the task is still pending or running.
type ResultResponse struct {
	TaskID string         `json:"task_id"`
	Status string         `json:"status"`
	Result *models.Report `json:"result"`
}

var statusMessages = map[string]string{
	jobqueue.StatusPending:   "Task is waiting to be processed",
	jobqueue.StatusRunning:   "Task is currently being processed",
	jobqueue.StatusCompleted: "Task completed successfully",
	jobqueue.StatusFailed:    "Task failed",
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "diffreview",
		"status":  "running",
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// analyzePR accepts a review request and queues it. The review itself runs
// asynchronously; the caller polls /api/status and /api/results.
func (s *Server) analyzePR(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	if strings.TrimSpace(req.PRURL) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "pr_url is required",
		})
	}

	taskID := uuid.New().String()

	err := s.queue.EnqueueReview(c.Request().Context(), jobqueue.ReviewJobArgs{
		TaskID:             taskID,
		URL:                req.PRURL,
		GitHubToken:        req.GitHubToken,
		Template:           req.Template,
		IncludeFileDetails: req.IncludeFileDetails,
		IncludeSummary:     req.IncludeSummary,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("url", req.PRURL).Msg("failed to enqueue review")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to queue review",
		})
	}

	s.logger.Info().Str("task_id", taskID).Str("url", req.PRURL).Msg("review queued")

	return c.JSON(http.StatusAccepted, AnalyzeResponse{
		TaskID: taskID,
		Status: jobqueue.StatusPending,
	})
}

func (s *Server) taskStatus(c echo.Context) error {
	taskID := c.Param("task_id")

	task, err := s.queue.Store().GetTask(c.Request().Context(), taskID)
	if err != nil {
		if errors.Is(err, jobqueue.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "task not found",
			})
		}
		s.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to load task")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load task",
		})
	}

	message := statusMessages[task.Status]
	if task.Status == jobqueue.StatusFailed && task.Error != "" {
		message = task.Error
	}

	return c.JSON(http.StatusOK, StatusResponse{
		TaskID:  task.TaskID,
		Status:  task.Status,
		Message: message,
	})
}

// taskResults returns the stored report. A failed run still has a report
// whose review text is the error explanation, so it is returned the same
// way; a task that has not finished gets the status envelope with a null
// result.
func (s *Server) taskResults(c echo.Context) error {
	taskID := c.Param("task_id")

	task, err := s.queue.Store().GetTask(c.Request().Context(), taskID)
	if err != nil {
		if errors.Is(err, jobqueue.ErrTaskNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "task not found",
			})
		}
		s.logger.Error().Err(err).Str("task_id", taskID).Msg("failed to load task")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load task",
		})
	}

	return c.JSON(http.StatusOK, ResultResponse{
		TaskID: task.TaskID,
		Status: task.Status,
		Result: task.Report,
	})
}
