// Package ai defines the text-generation capability the review pipeline
// consumes. The pipeline calls it synchronously and treats retry/backoff
// as the provider's own concern.
package ai

import "context"

// CompletionRequest is one generation call.
type CompletionRequest struct {
	SystemPrompt string
	UserContent  string
	Temperature  float64
	// StructuredJSON asks the backend for a JSON object response where the
	// backend supports it. Callers still validate the payload themselves.
	StructuredJSON bool
}

// Provider is a text-generation backend.
type Provider interface {
	// Complete returns the model's text for the request, or a
	// *GenerationError once the provider's own retries are exhausted.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name returns the provider's name for logging.
	Name() string
}

// GenerationError is the terminal failure of a generation call.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return "generation failed (" + e.Provider + "): " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
