package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/teslashibe/go-parrot/pkg/audioio"
	"github.com/teslashibe/go-parrot/pkg/memory"
	"github.com/teslashibe/go-parrot/pkg/stt"
)

// Loop runs the conversation. It is driven by a single goroutine; only
// Stop, State and Metrics may be called from others.
type Loop struct {
	session *Session
	c       Components
	config  Config

	notifier Notifier
	observer Observer
	metrics  *MetricsCollector
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Loop.
type Option func(*Loop)

// WithNotifier sets where failure notices go. The default logs them.
func WithNotifier(n Notifier) Option {
	return func(l *Loop) { l.notifier = n }
}

// WithObserver registers an observer for loop events.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates a loop in the Idle state.
func New(session *Session, c Components, cfg Config, opts ...Option) (*Loop, error) {
	if session == nil {
		return nil, errors.New("voice: session required")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		session: session,
		c:       c,
		config:  cfg,
		metrics: NewMetricsCollector(),
		logger:  slog.Default(),
		state:   Idle,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "voice.loop", "session", session.ID)
	if l.notifier == nil {
		l.notifier = NotifierFunc(func(n Notice) {
			l.logger.Warn(n.Message, "kind", n.Kind, "error", n.Err)
		})
	}
	return l, nil
}

// Session returns the loop's session.
func (l *Loop) Session() *Session {
	return l.session
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Metrics returns the latency collector.
func (l *Loop) Metrics() *MetricsCollector {
	return l.metrics
}

// Stop asks a running loop to terminate. The turn in progress is dropped.
// It is safe to call more than once and from any goroutine.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Run takes turns until ctx is cancelled, Stop is called, or a stop
// phrase is heard; each of these returns nil. It returns an error wrapping
// ErrTooManyFailures when the configured failure limit is reached.
func (l *Loop) Run(ctx context.Context) error {
	if l.State() == Terminated {
		return ErrTerminated
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	l.logger.Info("conversation started", "user", l.session.User, "history", l.session.History.Len())

	failures := 0
	for {
		if ctx.Err() != nil {
			l.terminate("stopped")
			return nil
		}

		err := l.RunTurn(ctx)

		var te *TurnError
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, ErrStopPhrase):
			l.terminate("stop phrase")
			return nil
		case ctx.Err() != nil:
			l.terminate("stopped")
			return nil
		case errors.As(err, &te):
			if te.Kind == KindNoAudio {
				continue
			}
			failures++
			if limit := l.config.MaxConsecutiveFailures; limit > 0 && failures >= limit {
				l.terminate("too many failures")
				return fmt.Errorf("%w (%d): %w", ErrTooManyFailures, failures, err)
			}
		default:
			l.terminate("error")
			return err
		}
	}
}

// RunTurn takes one turn from Idle back to Idle. A recoverable failure is
// returned as *TurnError. ErrStopPhrase is returned when the user asked to
// stop, and the context's error when it was cancelled; in both cases the
// loop is left where it was for Run to terminate.
func (l *Loop) RunTurn(ctx context.Context) error {
	turn := l.session.nextTurn()
	log := l.logger.With("turn", turn)
	l.metrics.Begin(turn)

	if err := l.transition(Listening); err != nil {
		return err
	}
	utt, err := l.c.Capturer.Capture(ctx)
	if err != nil {
		if errors.Is(err, audioio.ErrNoAudioDetected) {
			return l.fail(ctx, log, KindNoAudio, err)
		}
		return l.fail(ctx, log, KindCapture, err)
	}
	l.metrics.MarkSpeechEnd(utt.EndedAt, utt.Duration())
	log.Debug("utterance captured", "duration", utt.Duration())

	if err := l.transition(Transcribing); err != nil {
		return err
	}
	res, err := l.c.Transcriber.Transcribe(ctx, utt)
	if err == nil && (res == nil || strings.TrimSpace(res.Text) == "") {
		err = stt.ErrUnintelligible
	}
	if err != nil {
		return l.fail(ctx, log, KindRecognition, err)
	}
	text := strings.TrimSpace(res.Text)
	l.metrics.MarkTranscript()
	log.Info("user said", "text", text, "provider", res.Provider)

	if l.config.isStopPhrase(text) {
		log.Info("stop phrase heard", "text", text)
		return ErrStopPhrase
	}

	history := l.session.History
	mark := history.Len()
	prior := history.Turns()
	completed := false
	defer func() {
		if !completed && ctx.Err() != nil {
			history.Truncate(mark)
		}
	}()
	l.appendTurn(memory.RoleUser, text)
	if err := l.transition(Generating); err != nil {
		return err
	}

	reply, err := l.c.Generator.Generate(ctx, prior, text)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		return l.fail(ctx, log, KindGeneration, err)
	}
	l.metrics.MarkReply()
	l.appendTurn(memory.RoleAssistant, reply)
	log.Info("assistant replied", "text", reply)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.transition(Synthesizing); err != nil {
		return err
	}
	if l.config.DeleteArtifacts {
		l.deleteArtifacts(log)
	}
	audio, err := l.c.Synthesizer.Synthesize(ctx, reply)
	if err != nil {
		return l.fail(ctx, log, KindSynthesis, err)
	}
	l.metrics.MarkAudioReady()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.transition(Playing); err != nil {
		return err
	}
	if err := l.c.Player.Play(ctx, audio.Path); err != nil {
		return l.fail(ctx, log, KindPlayback, err)
	}
	completed = true

	if err := l.transition(Idle); err != nil {
		return err
	}
	m := l.metrics.MarkResponseDone()
	log.Info("turn complete", "latency", m.FormatLatency())
	if l.observer != nil {
		l.observer.TurnEnded(m)
	}
	return nil
}

// fail ends the turn. Cancellation is passed through untouched so that Run
// can terminate; anything else is reported and the loop returns to Idle.
func (l *Loop) fail(ctx context.Context, log *slog.Logger, kind Kind, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	te := &TurnError{Kind: kind, State: l.State(), Err: err}
	if kind == KindNoAudio {
		log.Info("no speech detected, listening again")
	} else {
		log.Warn("turn failed", "kind", kind, "state", te.State, "error", err)
		n := Notice{Kind: kind, Message: kind.Message(), Err: err}
		l.notifier.Notify(n)
		if l.observer != nil {
			l.observer.Noticed(n)
		}
	}

	if terr := l.transition(Idle); terr != nil {
		return terr
	}
	m := l.metrics.MarkFailed()
	if l.observer != nil {
		l.observer.TurnEnded(m)
	}
	return te
}

func (l *Loop) appendTurn(role, content string) {
	t := l.session.History.Append(role, content)
	if l.observer != nil {
		l.observer.TurnAppended(t)
	}
}

func (l *Loop) deleteArtifacts(log *slog.Logger) {
	for _, p := range l.config.ArtifactPaths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("could not remove previous audio", "path", p, "error", err)
		}
	}
}

func (l *Loop) transition(to State) error {
	l.mu.Lock()
	from := l.state
	if !CanTransition(from, to) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	l.state = to
	l.mu.Unlock()

	l.logger.Debug("state", "from", from, "to", to)
	if l.observer != nil {
		l.observer.StateChanged(from, to)
	}
	return nil
}

func (l *Loop) terminate(reason string) {
	if err := l.transition(Terminated); err != nil {
		return
	}
	l.logger.Info("conversation ended", "reason", reason, "turns", l.session.Turns())
}
