package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/teslashibe/go-parrot/internal/httpc"
	"github.com/teslashibe/go-parrot/pkg/audioio"
	"github.com/teslashibe/go-parrot/pkg/gradio"
)

const (
	providerApplio = "applio"

	apiTTS   = "/run_tts_script"
	apiInfer = "/run_infer_script"
)

// param is one positional input with the value Applio uses by default.
type param struct {
	name string
	def  any
}

// Fallback signatures for apps whose /info cannot be read. Parameters
// without a default are filled from config on every call.
var (
	ttsParams = []param{
		{"tts_file", ""},
		{"tts_text", nil},
		{"tts_voice", nil},
		{"tts_rate", 0},
		{"pitch", 0},
		{"filter_radius", 3},
		{"index_rate", 0.75},
		{"volume_envelope", 1},
		{"protect", 0.5},
		{"hop_length", 128},
		{"f0_method", "rmvpe"},
		{"output_tts_path", nil},
		{"output_rvc_path", nil},
		{"pth_path", nil},
		{"index_path", ""},
		{"split_audio", false},
		{"f0_autotune", false},
		{"f0_autotune_strength", 1},
		{"clean_audio", true},
		{"clean_strength", 0.5},
		{"export_format", "WAV"},
		{"f0_file", nil},
		{"embedder_model", "contentvec"},
		{"embedder_model_custom", nil},
		{"sid", 0},
	}

	inferParams = []param{
		{"pitch", 0},
		{"filter_radius", 3},
		{"index_rate", 0.75},
		{"volume_envelope", 1},
		{"protect", 0.5},
		{"hop_length", 128},
		{"f0_method", "rmvpe"},
		{"input_path", nil},
		{"output_path", nil},
		{"pth_path", nil},
		{"index_path", ""},
		{"split_audio", false},
		{"f0_autotune", false},
		{"f0_autotune_strength", 1},
		{"clean_audio", true},
		{"clean_strength", 0.5},
		{"export_format", "WAV"},
		{"f0_file", nil},
		{"embedder_model", "contentvec"},
		{"embedder_model_custom", nil},
		{"sid", 0},
	}
)

func fallbackEndpoint(params []param) *gradio.Endpoint {
	ep := &gradio.Endpoint{Parameters: make([]gradio.Parameter, len(params))}
	for i, p := range params {
		ep.Parameters[i] = gradio.Parameter{Name: p.name, HasDefault: true, Default: p.def}
	}
	return ep
}

// Applio drives an Applio app. It is both the Speaker and the Converter:
// /run_tts_script speaks and converts in one job, and a following Convert
// of that speech file reuses the converted output instead of running the
// model again. Any other input goes through /run_infer_script.
type Applio struct {
	config *Config
	client *gradio.Client
	logger *slog.Logger

	mu      sync.Mutex
	pending *pendingOutput
}

// pendingOutput is the converted file produced alongside the last speech file.
type pendingOutput struct {
	speechPath string
	ref        gradio.FileRef
	hasRef     bool
	at         time.Time
}

// NewApplio creates an Applio client.
func NewApplio(opts ...Option) (*Applio, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	copts := []gradio.Option{
		gradio.WithProtocol(cfg.Protocol),
		gradio.WithLogger(cfg.Logger),
	}
	if cfg.HTTPClient != nil {
		copts = append(copts, gradio.WithHTTPClient(cfg.HTTPClient))
	} else {
		copts = append(copts, gradio.WithHTTPClient(httpc.NewClient(0)))
	}
	client, err := gradio.NewClient(cfg.BaseURL, copts...)
	if err != nil {
		return nil, WrapError(providerApplio, err)
	}

	return &Applio{
		config: cfg,
		client: client,
		logger: cfg.Logger.With("component", "tts.applio"),
	}, nil
}

// Speak runs /run_tts_script. Applio writes the speech file and, in the
// same job, the converted file.
func (a *Applio) Speak(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	named := map[string]any{
		"tts_text":        text,
		"tts_voice":       a.config.Voice,
		"pitch":           a.config.Pitch,
		"f0_method":       a.config.F0Method,
		"output_tts_path": a.config.TTSOutputPath,
		"output_rvc_path": a.config.RVCOutputPath,
		"pth_path":        a.config.PTHPath,
		"index_path":      a.config.IndexPath,
		"export_format":   a.config.ExportFormat,
	}

	out, err := a.predict(ctx, apiTTS, ttsParams, named)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("applio response", "api", apiTTS, "output", summarize(out))

	p := &pendingOutput{speechPath: a.config.TTSOutputPath, at: start}
	p.ref, p.hasRef = lastFile(out)
	a.mu.Lock()
	a.pending = p
	a.mu.Unlock()

	res := &AudioResult{
		Path:      a.config.TTSOutputPath,
		CharCount: len([]rune(text)),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	// The speech file only exists locally when Applio shares our filesystem.
	if err := fillFormat(res); err != nil {
		a.logger.Debug("speech file format unknown", "path", res.Path, "error", err)
	}
	return res, nil
}

// Convert produces the converted voice file for inputPath.
func (a *Applio) Convert(ctx context.Context, inputPath string) (*AudioResult, error) {
	start := time.Now()

	a.mu.Lock()
	p := a.pending
	a.pending = nil
	a.mu.Unlock()

	var (
		ref    gradio.FileRef
		hasRef bool
	)
	if p != nil && p.speechPath == inputPath {
		ref, hasRef = p.ref, p.hasRef
	} else {
		named := map[string]any{
			"input_path":    inputPath,
			"output_path":   a.config.RVCOutputPath,
			"pth_path":      a.config.PTHPath,
			"index_path":    a.config.IndexPath,
			"pitch":         a.config.Pitch,
			"f0_method":     a.config.F0Method,
			"export_format": a.config.ExportFormat,
		}
		out, err := a.predict(ctx, apiInfer, inferParams, named)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("applio response", "api", apiInfer, "output", summarize(out))
		ref, hasRef = lastFile(out)
		p = &pendingOutput{at: start}
	}

	if err := a.ensureLocal(ctx, a.config.RVCOutputPath, ref, hasRef, p.at); err != nil {
		return nil, err
	}

	res := &AudioResult{
		Path:      a.config.RVCOutputPath,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err := fillFormat(res); err != nil {
		return nil, WrapError(providerApplio, err)
	}
	return res, nil
}

// predict resolves positional arguments and calls the endpoint.
func (a *Applio) predict(ctx context.Context, api string, fallback []param, named map[string]any) ([]any, error) {
	ep, err := a.client.Endpoint(ctx, api)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Debug("endpoint info unavailable, using built-in signature", "api", api, "error", err)
		ep = fallbackEndpoint(fallback)
	}

	args, unused, err := ep.Args(named)
	if err != nil {
		return nil, WrapError(providerApplio, err)
	}
	if len(unused) > 0 {
		a.logger.Debug("parameters not accepted by endpoint", "api", api, "names", unused)
	}

	out, err := a.client.Predict(ctx, api, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(providerApplio, err)
	}
	return out, nil
}

// ensureLocal makes sure path holds a file written by this job. A file
// older than the job start is stale and is replaced from ref when possible.
func (a *Applio) ensureLocal(ctx context.Context, path string, ref gradio.FileRef, hasRef bool, since time.Time) error {
	if info, err := os.Stat(path); err == nil && !info.ModTime().Before(since.Truncate(time.Second)) {
		return nil
	}
	if !hasRef {
		return WrapError(providerApplio, fmt.Errorf("%w: %s", ErrNoOutput, path))
	}
	if err := a.client.Download(ctx, ref, path); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return WrapError(providerApplio, err)
	}
	return nil
}

// Health checks that the Applio app is serving.
func (a *Applio) Health(ctx context.Context) error {
	if err := a.client.Health(ctx); err != nil {
		return WrapError(providerApplio, err)
	}
	return nil
}

// Close releases resources.
func (a *Applio) Close() error {
	return nil
}

// fillFormat reads the WAV header of res.Path into res.
func fillFormat(res *AudioResult) error {
	chunk, info, err := audioio.ReadWAVFile(res.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoOutput, res.Path)
		}
		return err
	}
	res.Format = AudioFormat{
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitsPerSample,
	}
	res.Duration = chunk.Duration()
	return nil
}

// lastFile returns the last output value that looks like a file.
func lastFile(out []any) (gradio.FileRef, bool) {
	for i := len(out) - 1; i >= 0; i-- {
		if _, isText := out[i].(string); isText && i == 0 {
			break
		}
		if ref, ok := gradio.AsFile(out[i]); ok {
			return ref, true
		}
	}
	return gradio.FileRef{}, false
}

func summarize(out []any) string {
	s := fmt.Sprint(out)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

// Verify Applio implements both stages at compile time.
var (
	_ Speaker   = (*Applio)(nil)
	_ Converter = (*Applio)(nil)
)
