package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoBaseURL is returned when the Applio URL is missing.
	ErrNoBaseURL = errors.New("tts: base URL required")

	// ErrNoModel is returned when no RVC model is configured.
	ErrNoModel = errors.New("tts: RVC model path required")

	// ErrNoOutputPath is returned when an output path is missing.
	ErrNoOutputPath = errors.New("tts: output paths required")

	// ErrEmptyText is returned when nothing speakable is left after filtering.
	ErrEmptyText = errors.New("tts: nothing to synthesize")

	// ErrNoOutput is returned when a stage reported success but left no file.
	ErrNoOutput = errors.New("tts: no output file")

	// ErrProviderUnavailable is returned when a backend is missing.
	ErrProviderUnavailable = errors.New("tts: no providers available")
)

// SynthesisError reports which stage of the pipeline failed.
type SynthesisError struct {
	Stage string // StageTTS or StageRVC
	Err   error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("tts: %s stage: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
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
