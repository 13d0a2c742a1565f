package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// CaptureMode selects how a Capturer decides when speech starts.
type CaptureMode string

const (
	// CaptureThreshold starts buffering when chunk energy crosses VADThreshold.
	CaptureThreshold CaptureMode = "threshold"
	// CaptureImmediate buffers from the first chunk.
	CaptureImmediate CaptureMode = "immediate"
)

// CaptureConfig controls utterance endpointing.
type CaptureConfig struct {
	Mode CaptureMode

	// VADThreshold is the RMS level (0.0-1.0) that counts as speech.
	VADThreshold float64

	// PrefixPadding is the audio kept from before speech onset.
	PrefixPadding time.Duration

	// SilenceDuration of trailing silence ends the utterance.
	SilenceDuration time.Duration

	// MaxDuration caps the utterance length.
	MaxDuration time.Duration

	// ListenTimeout bounds the wait for speech to start.
	ListenTimeout time.Duration
}

// DefaultCaptureConfig returns endpointing tuned for conversational speech.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Mode:            CaptureThreshold,
		VADThreshold:    0.02,
		PrefixPadding:   300 * time.Millisecond,
		SilenceDuration: 800 * time.Millisecond,
		MaxDuration:     30 * time.Second,
		ListenTimeout:   10 * time.Second,
	}
}

// Validate checks the endpointing parameters.
func (c CaptureConfig) Validate() error {
	if c.Mode != CaptureThreshold && c.Mode != CaptureImmediate {
		return fmt.Errorf("capture mode must be %q or %q, got %q", CaptureThreshold, CaptureImmediate, c.Mode)
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("vad_threshold must be within 0..1, got %v", c.VADThreshold)
	}
	if c.SilenceDuration <= 0 {
		return fmt.Errorf("silence_duration must be positive, got %v", c.SilenceDuration)
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("max_duration must be positive, got %v", c.MaxDuration)
	}
	if c.ListenTimeout <= 0 {
		return fmt.Errorf("listen_timeout must be positive, got %v", c.ListenTimeout)
	}
	return nil
}

// Utterance is one captured span of user speech.
type Utterance struct {
	Samples    []int16
	SampleRate int
	Channels   int
	StartedAt  time.Time
	EndedAt    time.Time
}

// Duration returns the length of the captured audio.
func (u *Utterance) Duration() time.Duration {
	c := AudioChunk{Samples: u.Samples, SampleRate: u.SampleRate, Channels: u.Channels}
	return c.Duration()
}

// WAV returns the utterance encoded as a 16-bit PCM WAV file.
func (u *Utterance) WAV() []byte {
	return WAVBytes(AudioChunk{Samples: u.Samples, SampleRate: u.SampleRate, Channels: u.Channels})
}

// Capturer records one utterance per call from a Source.
type Capturer struct {
	src    Source
	cfg    CaptureConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewCapturer creates a Capturer over src.
func NewCapturer(src Source, cfg CaptureConfig, logger *slog.Logger) *Capturer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Capturer{
		src:    src,
		cfg:    cfg,
		logger: logger.With("component", "audioio.capture"),
		now:    time.Now,
	}
}

// Capture opens the source, waits for speech, and returns the utterance once
// trailing silence or the duration cap is reached. The source is stopped
// before Capture returns on every path.
//
// Timing is measured in captured audio, so it tracks the device clock.
// A wall-clock guard still bounds a stalled device.
func (c *Capturer) Capture(ctx context.Context) (u *Utterance, err error) {
	if err := c.src.Start(ctx); err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer func() {
		if stopErr := c.src.Stop(); stopErr != nil {
			c.logger.Warn("stop source", "error", stopErr)
		}
	}()

	guard := c.cfg.ListenTimeout + c.cfg.MaxDuration + 2*time.Second
	ctx, cancel := context.WithTimeout(ctx, guard)
	defer cancel()

	srcCfg := c.src.Config()
	var (
		prefix    []AudioChunk
		prefixDur time.Duration
		buf       []int16
		speaking  = c.cfg.Mode == CaptureImmediate
		waited    time.Duration
		spoken    time.Duration
		silence   time.Duration
		heard     bool
		startedAt time.Time
	)
	if speaking {
		startedAt = c.now()
	}

	for {
		chunk, err := c.src.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if heard {
					break
				}
				return nil, ErrNoAudioDetected
			}
			return nil, err
		}
		if len(chunk.Samples) == 0 {
			continue
		}
		if chunk.SampleRate == 0 {
			chunk.SampleRate = srcCfg.SampleRate
		}
		if chunk.Channels == 0 {
			chunk.Channels = srcCfg.Channels
		}

		d := chunk.Duration()
		loud := CalculateRMS(chunk.Samples) >= c.cfg.VADThreshold

		if !speaking {
			waited += d
			if loud {
				speaking = true
				startedAt = c.now().Add(-prefixDur)
				for _, p := range prefix {
					buf = append(buf, p.Samples...)
				}
				prefix = nil
			} else {
				prefix = append(prefix, chunk)
				prefixDur += d
				for len(prefix) > 0 && prefixDur-prefix[0].Duration() >= c.cfg.PrefixPadding {
					prefixDur -= prefix[0].Duration()
					prefix = prefix[1:]
				}
				if waited >= c.cfg.ListenTimeout {
					return nil, ErrNoAudioDetected
				}
				continue
			}
		}

		buf = append(buf, chunk.Samples...)
		spoken += d
		if loud {
			heard = true
			silence = 0
		} else {
			silence += d
		}

		if heard && silence >= c.cfg.SilenceDuration {
			break
		}
		if spoken >= c.cfg.MaxDuration {
			c.logger.Debug("utterance hit max duration", "max", c.cfg.MaxDuration)
			break
		}
		if !heard && spoken >= c.cfg.ListenTimeout {
			return nil, ErrNoAudioDetected
		}
	}

	if len(buf) == 0 || !heard {
		return nil, ErrNoAudioDetected
	}

	u = &Utterance{
		Samples:    buf,
		SampleRate: srcCfg.SampleRate,
		Channels:   srcCfg.Channels,
		StartedAt:  startedAt,
		EndedAt:    c.now(),
	}
	c.logger.Debug("utterance captured", "duration", u.Duration(), "samples", len(buf))
	return u, nil
}
