// Package stt provides a unified interface for speech-to-text providers.
//
// Backends include Google Cloud Speech-to-Text (v1 REST) and any
// OpenAI-compatible transcription server (Whisper, faster-whisper,
// whisper.cpp). All providers implement Provider, and Chain falls back
// across them in order.
//
// Example usage:
//
//	provider, _ := stt.NewGoogle(
//	    stt.WithAPIKey(os.Getenv("GOOGLE_API_KEY")),
//	    stt.WithLanguage("en-US"),
//	)
//	defer provider.Close()
//
//	result, err := provider.Transcribe(ctx, utterance)
//	if errors.Is(err, stt.ErrUnintelligible) {
//	    // ask the user to repeat
//	}
package stt

import (
	"context"
	"time"

	"github.com/teslashibe/go-parrot/pkg/audioio"
)

// Provider defines the speech recognition interface.
type Provider interface {
	// Transcribe converts one utterance to text.
	// Returns ErrUnintelligible when the service heard no words, and an
	// error wrapping ErrUnavailable when the service could not be reached.
	Transcribe(ctx context.Context, u *audioio.Utterance) (*Result, error)

	// Health checks provider connectivity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Result is a recognized transcript.
type Result struct {
	// Text is the best transcript. Never empty on success.
	Text string

	// Confidence is the provider's confidence (0.0-1.0), or 0 if unknown.
	Confidence float64

	// Language is the language code used for recognition.
	Language string

	// Provider names the backend that produced the transcript.
	Provider string

	// Latency is the time spent waiting on the provider.
	Latency time.Duration
}
