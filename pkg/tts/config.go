package tts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-parrot/pkg/gradio"
)

// Config holds Applio configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Applio app
	BaseURL    string
	Protocol   gradio.Protocol
	HTTPClient *http.Client

	// Voice configuration
	Voice     string // edge-tts voice, e.g. "en-US-AndrewNeural"
	PTHPath   string // RVC model weights
	IndexPath string // RVC feature index
	Pitch     int    // semitones
	F0Method  string // rmvpe, crepe, fcpe, ...

	// Output files
	TTSOutputPath string
	RVCOutputPath string
	ExportFormat  string

	// Per-stage timeouts, applied by Pipeline
	TTSTimeout time.Duration
	RVCTimeout time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring TTS components.
type Option func(*Config)

// WithBaseURL sets the Applio app URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithProtocol forces the Gradio transport.
func WithProtocol(p gradio.Protocol) Option {
	return func(c *Config) {
		c.Protocol = p
	}
}

// WithHTTPClient sets the HTTP client used to reach Applio.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = hc
	}
}

// WithVoice sets the TTS voice.
func WithVoice(voice string) Option {
	return func(c *Config) {
		c.Voice = voice
	}
}

// WithModel sets the RVC model and index files.
func WithModel(pthPath, indexPath string) Option {
	return func(c *Config) {
		c.PTHPath = pthPath
		c.IndexPath = indexPath
	}
}

// WithPitch sets the pitch shift in semitones.
func WithPitch(semitones int) Option {
	return func(c *Config) {
		c.Pitch = semitones
	}
}

// WithF0Method sets the pitch extraction algorithm.
func WithF0Method(method string) Option {
	return func(c *Config) {
		c.F0Method = method
	}
}

// WithOutputPaths sets where the TTS and RVC stages write their files.
func WithOutputPaths(ttsPath, rvcPath string) Option {
	return func(c *Config) {
		c.TTSOutputPath = ttsPath
		c.RVCOutputPath = rvcPath
	}
}

// WithTimeouts sets the per-stage timeouts.
func WithTimeouts(tts, rvc time.Duration) Option {
	return func(c *Config) {
		c.TTSTimeout = tts
		c.RVCTimeout = rvc
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns defaults for a local Applio install.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://127.0.0.1:6969/",
		Protocol:      gradio.ProtocolAuto,
		Voice:         "en-US-AndrewNeural",
		F0Method:      "rmvpe",
		TTSOutputPath: "assets/audios/tts_output.wav",
		RVCOutputPath: "assets/audios/tts_rvc_output.wav",
		ExportFormat:  "WAV",
		TTSTimeout:    60 * time.Second,
		RVCTimeout:    120 * time.Second,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.PTHPath == "" {
		return ErrNoModel
	}
	if c.TTSOutputPath == "" || c.RVCOutputPath == "" {
		return ErrNoOutputPath
	}
	return nil
}
