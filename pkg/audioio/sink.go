package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker or other output device.
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// Stop releases the device. Safe to call multiple times.
	Stop() error

	// Write queues a chunk for playback. May block on device backpressure.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush blocks until all queued audio has been played.
	Flush(ctx context.Context) error

	// Clear discards queued audio immediately and stops output.
	Clear() error

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}
