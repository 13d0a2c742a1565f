package audioio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PlayerConfig controls how artifacts are prepared for the sink.
type PlayerConfig struct {
	// Normalize scales each artifact so its peak reaches NormalizePeak.
	Normalize     bool
	NormalizePeak float64

	// ChunkDuration is the size of each write to the sink.
	ChunkDuration time.Duration
}

// DefaultPlayerConfig returns playback defaults.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Normalize:     false,
		NormalizePeak: 0.9,
		ChunkDuration: 100 * time.Millisecond,
	}
}

// Player plays WAV artifacts through a Sink.
type Player struct {
	sink   Sink
	cfg    PlayerConfig
	logger *slog.Logger
}

// NewPlayer creates a Player over sink.
func NewPlayer(sink Sink, cfg PlayerConfig, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = DefaultPlayerConfig().ChunkDuration
	}
	return &Player{
		sink:   sink,
		cfg:    cfg,
		logger: logger.With("component", "audioio.player"),
	}
}

// Prepare loads the WAV at path and converts it to the sink's format.
func (p *Player) Prepare(path string) (AudioChunk, error) {
	chunk, info, err := ReadWAVFile(path)
	if err != nil {
		return AudioChunk{}, err
	}

	out := p.sink.Config()
	samples := ConvertChannels(chunk.Samples, info.Channels, 1)
	samples = Resample(samples, info.SampleRate, out.SampleRate)
	if p.cfg.Normalize {
		samples = NormalizePeak(samples, p.cfg.NormalizePeak)
	}
	samples = ConvertChannels(samples, 1, out.Channels)

	p.logger.Debug("artifact prepared",
		"path", path,
		"in_rate", info.SampleRate,
		"in_channels", info.Channels,
		"out_rate", out.SampleRate,
		"out_channels", out.Channels,
	)
	return AudioChunk{Samples: samples, SampleRate: out.SampleRate, Channels: out.Channels}, nil
}

// Play plays the WAV file at path and blocks until playback finishes.
// The sink is opened for this call only. On cancellation buffered audio is
// discarded and the context error is returned.
func (p *Player) Play(ctx context.Context, path string) error {
	audio, err := p.Prepare(path)
	if err != nil {
		return err
	}

	if err := p.sink.Start(ctx); err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer func() {
		if err := p.sink.Stop(); err != nil {
			p.logger.Warn("stop sink", "error", err)
		}
	}()

	step := int(float64(audio.SampleRate)*p.cfg.ChunkDuration.Seconds()) * audio.Channels
	if step <= 0 {
		step = len(audio.Samples)
	}

	start := time.Now()
	for off := 0; off < len(audio.Samples); off += step {
		if err := ctx.Err(); err != nil {
			_ = p.sink.Clear()
			return err
		}
		end := min(off+step, len(audio.Samples))
		chunk := AudioChunk{Samples: audio.Samples[off:end], SampleRate: audio.SampleRate, Channels: audio.Channels}
		if err := p.sink.Write(ctx, chunk); err != nil {
			_ = p.sink.Clear()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("write audio: %w", err)
		}
	}

	if err := p.sink.Flush(ctx); err != nil {
		_ = p.sink.Clear()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("flush audio: %w", err)
	}

	p.logger.Debug("playback complete", "path", path, "audio", audio.Duration(), "elapsed", time.Since(start))
	return nil
}
