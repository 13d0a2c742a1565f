package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-parrot/internal/httpc"
	"github.com/teslashibe/go-parrot/pkg/audioio"
)

// Whisper defaults.
const (
	WhisperDefaultBaseURL = "http://127.0.0.1:8000/v1"
	WhisperDefaultModel   = "whisper-1"
	whisperProviderName   = "whisper"
)

// Whisper implements Provider against any OpenAI-compatible
// /audio/transcriptions endpoint.
type Whisper struct {
	config *Config
	client *openai.Client
	health *http.Client
	logger *slog.Logger
}

// NewWhisper creates a new Whisper provider.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = WhisperDefaultBaseURL
	cfg.Model = WhisperDefaultModel
	cfg.Apply(opts...)

	if cfg.BaseURL == "" {
		return nil, WrapError(whisperProviderName, errors.New("base URL required"))
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = httpc.NewClient(0)
	}

	return &Whisper{
		config: cfg,
		client: openai.NewClientWithConfig(oc),
		health: httpc.NewClient(httpc.DefaultPingTimeout),
		logger: cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the utterance as a WAV file.
func (w *Whisper) Transcribe(ctx context.Context, u *audioio.Utterance) (*Result, error) {
	if u == nil || len(u.Samples) == 0 {
		return nil, WrapError(whisperProviderName, ErrEmptyAudio)
	}

	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.config.Model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(u.WAV()),
		Language: isoLanguage(w.config.Language),
		Format:   openai.AudioResponseFormatJSON,
	})
	latency := time.Since(start)
	if err != nil {
		return nil, w.classify(ctx, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		w.logger.Debug("no speech recognized", "latency_ms", latency.Milliseconds())
		return nil, WrapError(whisperProviderName, ErrUnintelligible)
	}

	w.logger.Debug("transcribed",
		"chars", len(text),
		"latency_ms", latency.Milliseconds(),
	)

	return &Result{
		Text:     text,
		Language: w.config.Language,
		Provider: whisperProviderName,
		Latency:  latency,
	}, nil
}

func (w *Whisper) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return WrapError(whisperProviderName, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   whisperProviderName,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    fmt.Sprint(reqErr.Err),
			Provider:   whisperProviderName,
		}
	}
	return unavailable(whisperProviderName, err)
}

// Health checks that the server is reachable.
func (w *Whisper) Health(ctx context.Context) error {
	if err := httpc.Ping(ctx, w.health, w.config.BaseURL); err != nil {
		return unavailable(whisperProviderName, err)
	}
	return nil
}

// Close releases resources.
func (w *Whisper) Close() error {
	return nil
}

// isoLanguage reduces a BCP-47 tag such as "en-US" to the ISO-639-1 code
// that Whisper expects.
func isoLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		return strings.ToLower(tag[:i])
	}
	return strings.ToLower(tag)
}

// Verify Whisper implements Provider at compile time.
var _ Provider = (*Whisper)(nil)
