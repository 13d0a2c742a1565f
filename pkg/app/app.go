// Package app wires the voice chat collaborators together and manages
// their lifecycle: New, Init, Run, Shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/teslashibe/go-parrot/internal/log"
	"github.com/teslashibe/go-parrot/pkg/audioio"
	"github.com/teslashibe/go-parrot/pkg/gradio"
	"github.com/teslashibe/go-parrot/pkg/inference"
	"github.com/teslashibe/go-parrot/pkg/memory"
	"github.com/teslashibe/go-parrot/pkg/stt"
	"github.com/teslashibe/go-parrot/pkg/tts"
	"github.com/teslashibe/go-parrot/pkg/voice"
	"github.com/teslashibe/go-parrot/pkg/web"
)

// HealthTimeout bounds each startup connectivity check.
const HealthTimeout = 10 * time.Second

// ErrStartup wraps every Init failure.
var ErrStartup = errors.New("app: startup failed")

// App is the voice chat application. It owns every collaborator.
type App struct {
	config Config
	base   *slog.Logger // handed to collaborators, which tag their own component
	logger *slog.Logger
	out    io.Writer

	recognizer  stt.Provider
	provider    inference.Provider
	synthesizer *tts.Pipeline
	source      audioio.Source
	sink        audioio.Sink

	history *memory.History
	loop    *voice.Loop

	dashboard *web.Server
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger. Without it New sets up the process-wide
// logger from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithOutput sets where the conversation and notices are printed.
// Default: os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithRecognizer replaces the speech recognition chain built from config.
func WithRecognizer(p stt.Provider) Option {
	return func(a *App) { a.recognizer = p }
}

// WithProvider replaces the chat provider built from config.
func WithProvider(p inference.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithSynthesizer replaces the Applio pipeline built from config.
func WithSynthesizer(p *tts.Pipeline) Option {
	return func(a *App) { a.synthesizer = p }
}

// WithAudio replaces the audio devices built from config.
func WithAudio(src audioio.Source, sink audioio.Sink) Option {
	return func(a *App) {
		a.source = src
		a.sink = sink
	}
}

// New validates cfg and creates the application. The dashboard, when
// enabled, is created here so that its log feed is part of the logger.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{config: cfg, out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}

	if cfg.DashboardEnabled {
		// the dashboard logs to the console only; its own records would feed back
		console := a.logger
		if console == nil {
			console = log.New(log.Options{Level: level, Format: cfg.LogFormat})
		}
		a.dashboard = web.NewServer(cfg.DashboardAddr, web.WithLogger(console))
	}

	if a.logger == nil {
		opts := log.Options{Level: level, Format: cfg.LogFormat}
		if a.dashboard != nil {
			opts.Extra = append(opts.Extra, a.dashboard.LogHandler(log.ParseLevel(level)))
		}
		log.Setup(opts)
		a.logger = log.L()
	}
	a.base = a.logger
	a.logger = a.base.With("component", "app")

	return a, nil
}

// Init builds the collaborators, checks that every service is reachable,
// and loads the conversation history. Any failure is fatal.
func (a *App) Init(ctx context.Context) error {
	a.logger.Info("starting voice chat",
		"user", a.config.User,
		"llm", a.config.LLMBackends,
		"model", a.config.OllamaModel,
		"stt", a.config.STTBackends,
		"applio", a.config.ApplioURL,
	)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"history", a.initHistory},
		{"speech recognition", a.initRecognizer},
		{"response generation", a.initProvider},
		{"speech synthesis", a.initSynthesizer},
		{"audio", a.initAudio},
		{"health", a.checkHealth},
		{"conversation", a.initLoop},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStartup, step.name, err)
		}
	}
	return nil
}

func (a *App) initHistory(ctx context.Context) error {
	opts := []memory.Option{
		memory.WithMaxTurns(a.config.HistoryMaxTurns),
		memory.WithLogger(a.base),
	}

	if a.config.HistoryEnabled {
		switch a.config.HistoryBackend {
		case "redis":
			store, err := memory.NewRedisStore(ctx, a.config.RedisURL)
			if err != nil {
				return err
			}
			opts = append(opts, memory.WithStore(store))
		default:
			opts = append(opts, memory.WithStore(memory.NewJSONStore(a.config.HistoryDir)))
		}
	}

	a.history = memory.New(a.config.User, opts...)
	if err := a.history.Load(ctx); err != nil {
		return err
	}
	if n := a.history.Len(); n > 0 {
		a.logger.Info("history loaded", "turns", n)
	}
	return nil
}

func (a *App) initRecognizer(ctx context.Context) error {
	if a.recognizer != nil {
		return nil
	}

	var providers []stt.Provider
	for _, backend := range a.config.STTBackends {
		var (
			p   stt.Provider
			err error
		)
		switch backend {
		case "google":
			opts := []stt.Option{
				stt.WithLanguage(a.config.STTLanguage),
				stt.WithTimeout(a.config.STTTimeout),
				stt.WithLogger(a.base),
			}
			if a.config.GoogleAPIKey != "" {
				opts = append(opts, stt.WithAPIKey(a.config.GoogleAPIKey))
			}
			if a.config.GoogleCredentialsFile != "" {
				opts = append(opts, stt.WithCredentialsFile(a.config.GoogleCredentialsFile))
			}
			if a.config.GoogleSTTEndpoint != "" {
				opts = append(opts, stt.WithBaseURL(a.config.GoogleSTTEndpoint))
			}
			p, err = stt.NewGoogle(opts...)
		case "whisper":
			p, err = stt.NewWhisper(
				stt.WithBaseURL(a.config.WhisperURL),
				stt.WithAPIKey(a.config.WhisperKey),
				stt.WithModel(a.config.WhisperModel),
				stt.WithLanguage(a.config.STTLanguage),
				stt.WithTimeout(a.config.STTTimeout),
				stt.WithLogger(a.base),
			)
		default:
			err = fmt.Errorf("unknown backend %q", backend)
		}
		if err != nil {
			for _, built := range providers {
				built.Close()
			}
			return fmt.Errorf("%s: %w", backend, err)
		}
		providers = append(providers, p)
	}

	chain, err := stt.NewChainWithLogger(a.base, providers...)
	if err != nil {
		return err
	}
	a.recognizer = chain
	return nil
}

func (a *App) initProvider(ctx context.Context) error {
	if a.provider != nil {
		return nil
	}

	var providers []inference.Provider
	for _, backend := range a.config.LLMBackends {
		opts := []inference.Option{
			inference.WithModel(a.config.OllamaModel),
			inference.WithTemperature(a.config.Temperature),
			inference.WithTimeout(a.config.LLMTimeout),
			inference.WithLogger(a.base),
		}
		var (
			p   inference.Provider
			err error
		)
		switch backend {
		case "ollama":
			p, err = inference.NewOllama(append(opts, inference.WithBaseURL(a.config.OllamaURL))...)
		case "openai":
			p, err = inference.NewOpenAI(append(opts,
				inference.WithBaseURL(a.config.OpenAIBaseURL),
				inference.WithAPIKey(a.config.OpenAIKey),
			)...)
		default:
			err = fmt.Errorf("unknown backend %q", backend)
		}
		if err != nil {
			for _, built := range providers {
				built.Close()
			}
			return fmt.Errorf("%s: %w", backend, err)
		}
		providers = append(providers, p)
	}

	if len(providers) == 1 {
		a.provider = providers[0]
		return nil
	}
	chain, err := inference.NewChainWithLogger(a.base, providers...)
	if err != nil {
		return err
	}
	a.provider = chain
	return nil
}

func (a *App) initSynthesizer(ctx context.Context) error {
	if a.synthesizer != nil {
		return nil
	}

	proto, err := gradio.ParseProtocol(a.config.ApplioProtocol)
	if err != nil {
		return err
	}
	applio, err := tts.NewApplio(
		tts.WithBaseURL(a.config.ApplioURL),
		tts.WithProtocol(proto),
		tts.WithVoice(a.config.ApplioTTSVoice),
		tts.WithModel(a.config.ApplioPTHPath, a.config.ApplioIndexPath),
		tts.WithPitch(a.config.ApplioPitch),
		tts.WithF0Method(a.config.ApplioF0Method),
		tts.WithOutputPaths(a.config.ApplioTTSOutputPath, a.config.ApplioRVCOutputPath),
		tts.WithTimeouts(a.config.TTSTimeout, a.config.RVCTimeout),
		tts.WithLogger(a.base),
	)
	if err != nil {
		return err
	}

	a.synthesizer = tts.NewPipeline(applio, applio,
		tts.WithFilter(tts.NewFilter(a.config.FilteredChars)),
		tts.WithStageTimeouts(a.config.TTSTimeout, a.config.RVCTimeout),
		tts.WithPipelineLogger(a.base),
	)
	return nil
}

func (a *App) initAudio(ctx context.Context) error {
	if a.source != nil && a.sink != nil {
		return nil
	}

	backend := audioio.Backend(a.config.AudioBackend)

	in := audioio.DefaultConfig()
	in.Backend = backend
	in.SampleRate = a.config.InputSampleRate
	in.Device = a.config.InputDevice
	if in.Device == "" {
		in.Device = audioio.DeviceFromIndex(backend, a.config.InputDeviceIndex, true)
	}

	out := audioio.DefaultOutputConfig()
	out.Backend = backend
	out.SampleRate = a.config.OutputSampleRate
	out.Device = a.config.OutputDevice
	if out.Device == "" {
		out.Device = audioio.DeviceFromIndex(backend, a.config.OutputDeviceIndex, false)
	}

	src, err := audioio.NewSource(in, a.base)
	if err != nil {
		return fmt.Errorf("%w: input: %v", audioio.ErrDeviceUnavailable, err)
	}
	sink, err := audioio.NewSink(out, a.base)
	if err != nil {
		src.Close()
		return fmt.Errorf("%w: output: %v", audioio.ErrDeviceUnavailable, err)
	}
	a.source, a.sink = src, sink
	return nil
}

// checkHealth checks every remote collaborator before the first turn.
func (a *App) checkHealth(ctx context.Context) error {
	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"stt", a.recognizer.Health},
		{"llm", a.provider.Health},
		{"applio", a.synthesizer.Health},
	}
	for _, c := range checks {
		hctx, cancel := context.WithTimeout(ctx, HealthTimeout)
		err := c.fn(hctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		a.logger.Debug("service reachable", "service", c.name)
	}
	return nil
}

func (a *App) initLoop(ctx context.Context) error {
	mode, err := voice.ParsePromptMode(a.config.PromptMode)
	if err != nil {
		return err
	}
	generator := voice.NewChatGenerator(a.provider,
		voice.WithStartPrompt(a.config.StartPrompt),
		voice.WithPromptMode(mode),
		voice.WithGeneratorLogger(a.base),
	)

	capture := audioio.DefaultCaptureConfig()
	capture.Mode = audioio.CaptureMode(a.config.CaptureMode)
	capture.VADThreshold = a.config.VADThreshold
	capture.PrefixPadding = a.config.PrefixPadding
	capture.SilenceDuration = a.config.SilenceDuration
	capture.MaxDuration = a.config.MaxUtterance
	capture.ListenTimeout = a.config.ListenTimeout
	if err := capture.Validate(); err != nil {
		return err
	}

	player := audioio.DefaultPlayerConfig()
	player.Normalize = a.config.Normalize

	components := voice.Components{
		Capturer:    audioio.NewCapturer(a.source, capture, a.base),
		Transcriber: a.recognizer,
		Generator:   generator,
		Synthesizer: a.synthesizer,
		Player:      audioio.NewPlayer(a.sink, player, a.base),
	}

	cfg := voice.DefaultConfig().
		WithStopPhrases(a.config.StopPhrase).
		WithMaxConsecutiveFailures(a.config.MaxConsecutiveFailures)
	if a.config.DeleteArtifacts {
		cfg = cfg.WithArtifactCleanup(a.config.ApplioTTSOutputPath, a.config.ApplioRVCOutputPath)
	}

	var dashboard voice.Observer
	if a.dashboard != nil {
		dashboard = a.dashboard
	}

	loop, err := voice.New(voice.NewSession(a.config.User, a.history), components, cfg,
		voice.WithNotifier(voice.NewPrintNotifier(a.out)),
		voice.WithObserver(voice.Observers(&transcript{w: a.out}, dashboard)),
		voice.WithLogger(a.base),
	)
	if err != nil {
		return err
	}
	a.loop = loop

	if a.dashboard != nil {
		a.dashboard.OnStop = loop.Stop
		a.dashboard.Attach(loop)
	}
	return nil
}

// Run holds the conversation until ctx is cancelled, Stop is called, the
// user says the stop phrase, or too many turns fail in a row. The
// history is saved whenever the conversation ends.
func (a *App) Run(ctx context.Context) error {
	if a.loop == nil {
		return errors.New("app: Run called before Init")
	}

	if a.dashboard != nil {
		a.dashboard.StartAsync()
	}

	fmt.Fprintf(a.out, "Listening. Say %q or press Ctrl+C to quit.\n", a.config.StopPhrase)
	err := a.loop.Run(ctx)

	// ctx may already be cancelled
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if serr := a.history.Save(saveCtx); serr != nil {
		a.logger.Error("save history", "error", serr)
		if err == nil {
			err = serr
		}
	}
	return err
}

// Stop ends a running conversation.
func (a *App) Stop() {
	if a.loop != nil {
		a.loop.Stop()
	}
}

// Loop returns the conversation loop, or nil before Init.
func (a *App) Loop() *voice.Loop {
	return a.loop
}

// Dashboard returns the dashboard server, or nil when disabled.
func (a *App) Dashboard() *web.Server {
	return a.dashboard
}

// Shutdown releases every collaborator. It is safe after a failed Init.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.dashboard != nil {
		errs = append(errs, a.dashboard.Shutdown(ctx))
	}
	if a.recognizer != nil {
		errs = append(errs, a.recognizer.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	if a.synthesizer != nil {
		errs = append(errs, a.synthesizer.Close())
	}
	if a.source != nil {
		errs = append(errs, a.source.Close())
	}
	if a.sink != nil {
		errs = append(errs, a.sink.Close())
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	a.logger.Info("goodbye")
	return errors.Join(errs...)
}

// transcript prints the conversation as it happens.
type transcript struct {
	w io.Writer
}

func (t *transcript) StateChanged(_, to voice.State) {
	if to == voice.Listening {
		fmt.Fprintln(t.w, "Listening...")
	}
}

func (t *transcript) TurnAppended(turn memory.Turn) {
	switch turn.Role {
	case memory.RoleUser:
		fmt.Fprintf(t.w, "You: %s\n", turn.Content)
	case memory.RoleAssistant:
		fmt.Fprintf(t.w, "Assistant: %s\n", turn.Content)
	}
}

func (t *transcript) Noticed(voice.Notice) {}

func (t *transcript) TurnEnded(voice.Metrics) {}
