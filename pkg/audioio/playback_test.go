package audioio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func writeTestWAV(t *testing.T, rate, channels int, d time.Duration) string {
	t.Helper()

	frames := int(float64(rate) * d.Seconds())
	samples := make([]int16, frames*channels)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	path := filepath.Join(t.TempDir(), "reply.wav")
	if err := WriteWAVFile(path, AudioChunk{Samples: samples, SampleRate: rate, Channels: channels}); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	return path
}

func testOutputConfig(channels int) Config {
	return Config{Backend: BackendMock, SampleRate: 44100, Channels: channels, BufferDuration: 30 * time.Millisecond}
}

func TestPlayer_ResamplesToSinkRate(t *testing.T) {
	path := writeTestWAV(t, 22050, 1, 500*time.Millisecond)
	sink := NewMockSink(testOutputConfig(1))

	if err := NewPlayer(sink, DefaultPlayerConfig(), nil).Play(context.Background(), path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if got := len(sink.Played()); got != 22050 {
		t.Errorf("expected 22050 samples at 44.1kHz, got %d", got)
	}
	if sink.Running() {
		t.Error("sink should be stopped after playback")
	}
}

func TestPlayer_StereoSourceToStereoSink(t *testing.T) {
	path := writeTestWAV(t, 44100, 2, 100*time.Millisecond)
	sink := NewMockSink(testOutputConfig(2))

	if err := NewPlayer(sink, DefaultPlayerConfig(), nil).Play(context.Background(), path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := len(sink.Played()); got != 4410*2 {
		t.Errorf("expected %d interleaved samples, got %d", 4410*2, got)
	}
}

func TestPlayer_Normalize(t *testing.T) {
	path := writeTestWAV(t, 44100, 1, 100*time.Millisecond)
	sink := NewMockSink(testOutputConfig(1))
	cfg := DefaultPlayerConfig()
	cfg.Normalize = true
	cfg.NormalizePeak = 0.5

	if err := NewPlayer(sink, cfg, nil).Play(context.Background(), path); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	var peak int16
	for _, s := range sink.Played() {
		if s > peak {
			peak = s
		}
	}
	if peak < 16000 || peak > 16384 {
		t.Errorf("expected peak near half scale, got %d", peak)
	}
}

func TestPlayer_MissingFile(t *testing.T) {
	sink := NewMockSink(testOutputConfig(1))

	err := NewPlayer(sink, DefaultPlayerConfig(), nil).Play(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	if !errors.Is(err, ErrInvalidAudio) {
		t.Fatalf("expected ErrInvalidAudio, got %v", err)
	}
	if sink.Running() {
		t.Error("sink should never have been opened")
	}
}

func TestPlayer_SinkUnavailable(t *testing.T) {
	path := writeTestWAV(t, 44100, 1, 50*time.Millisecond)
	sink := NewMockSink(testOutputConfig(1)).WithError(errors.New("device busy"))

	err := NewPlayer(sink, DefaultPlayerConfig(), nil).Play(context.Background(), path)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestPlayer_CancelDuringFlush(t *testing.T) {
	path := writeTestWAV(t, 44100, 1, 200*time.Millisecond)
	sink := NewMockSink(testOutputConfig(1))

	ctx, cancel := context.WithCancel(context.Background())
	sink.FlushFunc = func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	err := NewPlayer(sink, DefaultPlayerConfig(), nil).Play(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sink.Clears() == 0 {
		t.Error("expected buffered audio to be cleared")
	}
	if len(sink.Played()) != 0 {
		t.Error("nothing should have been played")
	}
}
