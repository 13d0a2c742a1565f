package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-parrot/pkg/audioio"
)

// Chain tries recognizers in order, for example a local Whisper server
// first and Google second. It moves on only when a recognizer is
// unavailable: "unintelligible" is an answer about the audio, and another
// engine hearing the same utterance rarely does better.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a chain. At least one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger creates a chain that logs fallbacks to logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "stt.chain"),
	}, nil
}

// Transcribe returns the first recognizer's answer, skipping those that
// cannot be reached.
func (c *Chain) Transcribe(ctx context.Context, u *audioio.Utterance) (*Result, error) {
	var errs []error

	for i, p := range c.providers {
		result, err := p.Transcribe(ctx, u)
		switch {
		case err == nil:
			if i > 0 {
				c.logger.Info("fallback recognizer answered", "provider_index", i, "provider", result.Provider)
			}
			return result, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case !errors.Is(err, ErrUnavailable):
			return nil, err
		}

		errs = append(errs, err)
		c.logger.Warn("recognizer unavailable", "provider_index", i, "error", err)
	}

	return nil, &ChainError{Errors: errs}
}

// Health passes when at least one recognizer responds.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(c.providers) {
		return fmt.Errorf("stt: all %d recognizers unhealthy: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// Providers returns the list of providers in the chain.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// ChainError aggregates errors from all providers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "stt chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("stt chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("stt chain: all %d providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns all provider errors so errors.Is sees ErrUnavailable.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
