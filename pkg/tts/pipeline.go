package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Pipeline runs text through a Speaker and then a Converter.
// A nil Converter makes the speech file the final result.
type Pipeline struct {
	speaker    Speaker
	converter  Converter
	filter     *Filter
	ttsTimeout time.Duration
	rvcTimeout time.Duration
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithFilter strips unwanted characters from the text before speaking.
func WithFilter(f *Filter) PipelineOption {
	return func(p *Pipeline) { p.filter = f }
}

// WithStageTimeouts bounds each stage. Zero leaves a stage bounded only by
// the caller's context.
func WithStageTimeouts(tts, rvc time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.ttsTimeout = tts
		p.rvcTimeout = rvc
	}
}

// WithPipelineLogger sets the structured logger.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a two-stage synthesis pipeline.
func NewPipeline(speaker Speaker, converter Converter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		speaker:   speaker,
		converter: converter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "tts.pipeline")
	return p
}

// Synthesize produces the final voice file for text. Failures are
// returned as *SynthesisError naming the stage; a failed speech stage
// never reaches the converter.
func (p *Pipeline) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if p.speaker == nil {
		return nil, &SynthesisError{Stage: StageTTS, Err: ErrProviderUnavailable}
	}

	if p.filter != nil {
		kept, removed := p.filter.Apply(text)
		if removed != "" {
			p.logger.Info("removed characters", "removed", removed)
		}
		text = kept
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &SynthesisError{Stage: StageTTS, Err: ErrEmptyText}
	}

	speech, err := p.runStage(ctx, StageTTS, p.ttsTimeout, func(ctx context.Context) (*AudioResult, error) {
		return p.speaker.Speak(ctx, text)
	})
	if err != nil || p.converter == nil {
		return speech, err
	}

	return p.runStage(ctx, StageRVC, p.rvcTimeout, func(ctx context.Context) (*AudioResult, error) {
		return p.converter.Convert(ctx, speech.Path)
	})
}

func (p *Pipeline) runStage(ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (*AudioResult, error)) (*AudioResult, error) {
	stageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := fn(stageCtx)
	if err == nil && (res == nil || res.Path == "") {
		err = ErrNoOutput
	}
	if err != nil {
		// Report the caller's cancellation as-is; a stage timeout is a stage failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			p.logger.Warn("stage timed out", "stage", stage, "timeout", timeout)
		}
		return nil, &SynthesisError{Stage: stage, Err: err}
	}

	if res.LatencyMs == 0 {
		res.LatencyMs = time.Since(start).Milliseconds()
	}
	p.logger.Debug("stage complete",
		"stage", stage,
		"path", res.Path,
		"latency_ms", res.LatencyMs,
	)
	return res, nil
}

// Health checks both stages.
func (p *Pipeline) Health(ctx context.Context) error {
	if p.speaker == nil {
		return &SynthesisError{Stage: StageTTS, Err: ErrProviderUnavailable}
	}
	if err := p.speaker.Health(ctx); err != nil {
		return &SynthesisError{Stage: StageTTS, Err: err}
	}
	if p.converter != nil && any(p.converter) != any(p.speaker) {
		if err := p.converter.Health(ctx); err != nil {
			return &SynthesisError{Stage: StageRVC, Err: err}
		}
	}
	return nil
}

// Close closes both stages, once each.
func (p *Pipeline) Close() error {
	var err error
	if p.speaker != nil {
		err = p.speaker.Close()
	}
	if p.converter != nil && any(p.converter) != any(p.speaker) {
		if cerr := p.converter.Close(); cerr != nil {
			err = cerr
		}
	}
	return err
}
