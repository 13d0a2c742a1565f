package inference

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoBaseURL is returned when no endpoint is configured.
	ErrNoBaseURL = errors.New("inference: base URL required")

	// ErrNoModel is returned when no model name is configured.
	ErrNoModel = errors.New("inference: model required")

	// ErrModelNotFound is returned when the server does not have the model.
	// For Ollama this usually means it was never pulled.
	ErrModelNotFound = errors.New("inference: model not found")

	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("inference: empty response")

	// ErrMalformedResponse is returned when the server reply cannot be decoded.
	ErrMalformedResponse = errors.New("inference: malformed response")

	// ErrProviderUnavailable is returned when the generation service cannot
	// be reached, is overloaded, or no provider is configured.
	ErrProviderUnavailable = errors.New("inference: provider unavailable")

	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("inference: stream closed")
)

// APIError is a non-2xx reply from a chat endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Code       string // OpenAI-style error code, empty for Ollama
	Provider   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	if e.Code != "" {
		return fmt.Sprintf("inference: %s returned %d (%s): %s", e.Provider, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("inference: %s returned %d: %s", e.Provider, e.StatusCode, msg)
}

// Unwrap maps the status to a sentinel so callers can use errors.Is
// without inspecting codes. Ollama answers 404 for a model that is not
// pulled; other 404s (wrong base path) stay unmapped.
func (e *APIError) Unwrap() error {
	switch {
	case e.IsNotFound() && strings.Contains(strings.ToLower(e.Message), "model"):
		return ErrModelNotFound
	case e.IsRetryable():
		return ErrProviderUnavailable
	}
	return nil
}

// IsRateLimited reports HTTP 429.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized reports HTTP 401, typically a bad OpenAI-compatible API key.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable reports whether the same request may succeed later.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError tags an error with the backend that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("inference: %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError tags err with provider. A nil err stays nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError is returned when every provider in a Chain failed.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "inference: chain failed with no errors recorded"
	case 1:
		return fmt.Sprintf("inference: chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("inference: chain: all %d providers failed, last: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}
