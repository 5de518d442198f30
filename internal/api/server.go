// Package api exposes the review pipeline over HTTP: submit a URL, poll
// task status, fetch the finished report.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/diffreview/internal/jobqueue"
)

// Server represents the API server.
type Server struct {
	echo   *echo.Echo
	queue  *jobqueue.JobQueue
	logger zerolog.Logger
	port   int
}

// NewServer creates the server and wires its routes.
func NewServer(port int, queue *jobqueue.JobQueue, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:   e,
		queue:  queue,
		logger: logger,
		port:   port,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/", s.root)
	s.echo.GET("/health", s.health)

	api := s.echo.Group("/api")
	api.POST("/analyze-pr", s.analyzePR)
	api.GET("/status/:task_id", s.taskStatus)
	api.GET("/results/:task_id", s.taskResults)
}

// Start runs the server until interrupted, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
