package stt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/googleapi/transport"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/teslashibe/go-parrot/internal/httpc"
	"github.com/teslashibe/go-parrot/pkg/audioio"
)

// Google API defaults.
const (
	GoogleDefaultBaseURL = "https://speech.googleapis.com/"
	googleProviderName   = "google"
)

// Google implements Provider using the Cloud Speech-to-Text v1 REST API.
// Credentials are, in order: an API key, a service account file, or
// Application Default Credentials.
type Google struct {
	config  *Config
	service *speech.Service
	health  *http.Client
	logger  *slog.Logger
}

// NewGoogle creates a new Google Speech-to-Text provider.
func NewGoogle(opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = GoogleDefaultBaseURL
	cfg.Apply(opts...)

	ctx := context.Background()
	client, err := googleHTTPClient(ctx, cfg)
	if err != nil {
		return nil, WrapError(googleProviderName, err)
	}

	svc, err := speech.NewService(ctx,
		option.WithHTTPClient(client),
		option.WithEndpoint(cfg.BaseURL),
	)
	if err != nil {
		return nil, WrapError(googleProviderName, fmt.Errorf("create speech service: %w", err))
	}

	return &Google{
		config:  cfg,
		service: svc,
		health:  httpc.NewClient(httpc.DefaultPingTimeout),
		logger:  cfg.Logger.With("component", "stt.google"),
	}, nil
}

func googleHTTPClient(ctx context.Context, cfg *Config) (*http.Client, error) {
	base := cfg.HTTPClient
	if base == nil {
		base = httpc.NewClient(0)
	}

	if cfg.APIKey != "" {
		rt := base.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		return &http.Client{
			Transport: &transport.APIKey{Key: cfg.APIKey, Transport: rt},
			Timeout:   base.Timeout,
		}, nil
	}

	var creds *google.Credentials
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
	} else {
		var err error
		creds, err = google.FindDefaultCredentials(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
		}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// Transcribe sends the utterance as LINEAR16 audio to speech:recognize.
func (g *Google) Transcribe(ctx context.Context, u *audioio.Utterance) (*Result, error) {
	if u == nil || len(u.Samples) == 0 {
		return nil, WrapError(googleProviderName, ErrEmptyAudio)
	}

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	req := &speech.RecognizeRequest{
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(u.Samples)),
		},
		Config: &speech.RecognitionConfig{
			Encoding:                   "LINEAR16",
			SampleRateHertz:            int64(u.SampleRate),
			AudioChannelCount:          int64(u.Channels),
			LanguageCode:               g.config.Language,
			Model:                      g.config.Model,
			EnableAutomaticPunctuation: true,
		},
	}

	start := time.Now()
	resp, err := g.service.Speech.Recognize(req).Context(ctx).Do()
	latency := time.Since(start)
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	var (
		parts      []string
		confidence float64
	)
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		best := r.Alternatives[0]
		if t := strings.TrimSpace(best.Transcript); t != "" {
			parts = append(parts, t)
			if best.Confidence > confidence {
				confidence = best.Confidence
			}
		}
	}

	text := strings.Join(parts, " ")
	if text == "" {
		g.logger.Debug("no speech recognized", "latency_ms", latency.Milliseconds())
		return nil, WrapError(googleProviderName, ErrUnintelligible)
	}

	g.logger.Debug("transcribed",
		"chars", len(text),
		"confidence", confidence,
		"latency_ms", latency.Milliseconds(),
	)

	return &Result{
		Text:       text,
		Confidence: confidence,
		Language:   g.config.Language,
		Provider:   googleProviderName,
		Latency:    latency,
	}, nil
}

func (g *Google) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return WrapError(googleProviderName, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		apiErr := &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   googleProviderName,
		}
		if len(gerr.Errors) > 0 {
			apiErr.Code = gerr.Errors[0].Reason
		}
		return apiErr
	}
	return unavailable(googleProviderName, err)
}

// Health checks that the API endpoint is reachable.
func (g *Google) Health(ctx context.Context) error {
	if err := httpc.Ping(ctx, g.health, g.config.BaseURL); err != nil {
		return unavailable(googleProviderName, err)
	}
	return nil
}

// Close releases resources.
func (g *Google) Close() error {
	return nil
}

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
