// Package tts turns reply text into a playable voice file.
//
// Synthesis runs in two stages. A Speaker renders text to speech with a
// stock voice, then a Converter re-voices that file with an RVC model.
// Pipeline sequences both, applies per-stage timeouts and reports which
// stage failed. Applio implements both stages against a running Applio app.
//
// Example usage:
//
//	applio, _ := tts.NewApplio(
//	    tts.WithBaseURL("http://127.0.0.1:6969/"),
//	    tts.WithVoice("en-US-AndrewNeural"),
//	    tts.WithModel("logs/parrot/parrot.pth", "logs/parrot/parrot.index"),
//	)
//	p := tts.NewPipeline(applio, applio)
//	result, _ := p.Synthesize(ctx, "Hello world")
//	// result.Path is the converted WAV file
package tts

import (
	"context"
	"time"
)

// Stage names reported in SynthesisError.
const (
	StageTTS = "tts"
	StageRVC = "rvc"
)

// Speaker renders text to a speech file.
type Speaker interface {
	// Speak synthesizes text and returns the file it wrote.
	Speak(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the backend is reachable.
	Health(ctx context.Context) error

	// Close releases any resources held by the speaker.
	Close() error
}

// Converter re-voices an existing speech file.
type Converter interface {
	// Convert converts the file at inputPath and returns the file it wrote.
	Convert(ctx context.Context, inputPath string) (*AudioResult, error)

	// Health checks that the backend is reachable.
	Health(ctx context.Context) error

	// Close releases any resources held by the converter.
	Close() error
}

// AudioResult describes an audio file produced by a stage.
type AudioResult struct {
	// Path is the file on the local filesystem.
	Path string

	// Format is read from the WAV header when available.
	Format AudioFormat

	// Duration is the playback length, when the header was read.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time the stage took.
	LatencyMs int64
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}
