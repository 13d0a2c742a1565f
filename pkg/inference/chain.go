package inference

import (
	"context"
	"errors"
	"log/slog"
)

// Chain falls back across providers in order, typically a local Ollama
// first and an OpenAI-compatible server second. Every error moves on to
// the next provider except a cancelled context.
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
		logger:    logger.With("component", "inference.chain"),
	}, nil
}

// Chat returns the first successful reply.
func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return fallback(ctx, c, "chat", func(p Provider) (*ChatResponse, error) {
		return p.Chat(ctx, req)
	})
}

// Stream returns the first stream that opens. Once a stream is handed
// out, errors while reading it are the caller's.
func (c *Chain) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	return fallback(ctx, c, "stream", func(p Provider) (Stream, error) {
		return p.Stream(ctx, req)
	})
}

func fallback[T any](ctx context.Context, c *Chain, op string, call func(Provider) (T, error)) (T, error) {
	var zero T
	var errs []error

	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := call(p)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback provider answered", "op", op, "provider_index", i)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		errs = append(errs, err)
		c.logger.Warn("provider failed", "op", op, "provider_index", i, "error", err)
	}
	return zero, &ChainError{Errors: errs}
}

// Health passes when at least one provider is healthy, so the loop can
// start on the fallback alone.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(c.providers) {
		return &ChainError{Errors: errs}
	}
	if len(errs) > 0 {
		c.logger.Warn("some providers unhealthy", "unhealthy", len(errs), "total", len(c.providers))
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

// Providers returns the providers in fallback order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

var _ Provider = (*Chain)(nil)
