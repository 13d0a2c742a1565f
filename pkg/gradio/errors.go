package gradio

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned when the app cannot be reached.
	ErrUnavailable = errors.New("gradio: app unavailable")

	// ErrEndpointNotFound is returned when the app has no such named endpoint.
	ErrEndpointNotFound = errors.New("gradio: endpoint not found")

	// ErrMissingArgument is returned when a required parameter has no value.
	ErrMissingArgument = errors.New("gradio: missing argument")

	// ErrPredictionFailed is returned when the app reports an error for a call.
	ErrPredictionFailed = errors.New("gradio: prediction failed")

	// ErrQueueFull is returned when the app rejects a job because its queue is full.
	ErrQueueFull = errors.New("gradio: queue full")

	// ErrProtocol is returned for replies that do not follow the Gradio protocol.
	ErrProtocol = errors.New("gradio: protocol error")
)

// AppError carries the message the app attached to a failed prediction.
type AppError struct {
	Endpoint string
	Message  string
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gradio %s: prediction failed", e.Endpoint)
	}
	return fmt.Sprintf("gradio %s: %s", e.Endpoint, e.Message)
}

// Unwrap returns ErrPredictionFailed.
func (e *AppError) Unwrap() error {
	return ErrPredictionFailed
}

// HTTPError is returned for unexpected HTTP statuses.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gradio: %s: status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gradio: %s: status %d", e.URL, e.StatusCode)
}

// Unwrap reports server errors as ErrUnavailable.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode >= 500 {
		return ErrUnavailable
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
