package stt

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrUnintelligible is returned when the audio contained no recognizable speech.
	ErrUnintelligible = errors.New("stt: speech unintelligible")

	// ErrUnavailable is returned when the recognition service cannot be reached
	// or answers with an error.
	ErrUnavailable = errors.New("stt: service unavailable")

	// ErrNoCredentials is returned when no usable credentials are configured.
	ErrNoCredentials = errors.New("stt: credentials required")

	// ErrEmptyAudio is returned when the utterance has no samples.
	ErrEmptyAudio = errors.New("stt: empty audio")

	// ErrProviderUnavailable is returned when no providers are configured.
	ErrProviderUnavailable = errors.New("stt: no providers available")
)

// APIError represents an error response from a recognition API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Code is the error code from the API (if provided).
	Code string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stt [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap classifies every API error as the service being unavailable.
func (e *APIError) Unwrap() error {
	return ErrUnavailable
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401/403).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("stt [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// unavailable marks a transport failure as ErrUnavailable, keeping the cause.
func unavailable(provider string, err error) error {
	return WrapError(provider, fmt.Errorf("%w: %w", ErrUnavailable, err))
}
