package stt_test

import (
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-parrot/pkg/audioio"
	"github.com/teslashibe/go-parrot/pkg/stt"
)

func testUtterance() *audioio.Utterance {
	return &audioio.Utterance{Samples: make([]int16, 1600), SampleRate: 16000, Channels: 1}
}

func TestMockProvider(t *testing.T) {
	mock := stt.NewMock("hello there")
	ctx := context.Background()

	result, err := mock.Transcribe(ctx, testUtterance())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello there" {
		t.Errorf("expected 'hello there', got %q", result.Text)
	}

	if err := mock.Health(ctx); err != nil {
		t.Errorf("unexpected health error: %v", err)
	}
	if mock.CallCount("Transcribe") != 1 {
		t.Errorf("expected 1 Transcribe call, got %d", mock.CallCount("Transcribe"))
	}
	if calls := mock.Calls(); calls[0].Samples != 1600 {
		t.Errorf("expected 1600 samples recorded, got %d", calls[0].Samples)
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("expected calls to be cleared")
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	down := stt.WrapError("a", stt.ErrUnavailable)

	t.Run("requires a provider", func(t *testing.T) {
		if _, err := stt.NewChain(); !errors.Is(err, stt.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("falls back when unavailable", func(t *testing.T) {
		first := stt.WithError(down)
		second := stt.NewMock("fallback")
		chain, _ := stt.NewChain(first, second)

		result, err := chain.Transcribe(ctx, testUtterance())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Text != "fallback" {
			t.Errorf("expected fallback text, got %q", result.Text)
		}
		if first.CallCount("Transcribe") != 1 || second.CallCount("Transcribe") != 1 {
			t.Error("expected each provider to be called once")
		}
	})

	t.Run("unintelligible is final", func(t *testing.T) {
		first := stt.WithError(stt.WrapError("a", stt.ErrUnintelligible))
		second := stt.NewMock("never")
		chain, _ := stt.NewChain(first, second)

		_, err := chain.Transcribe(ctx, testUtterance())
		if !errors.Is(err, stt.ErrUnintelligible) {
			t.Fatalf("expected ErrUnintelligible, got %v", err)
		}
		if second.CallCount("Transcribe") != 0 {
			t.Error("second provider should not be called")
		}
	})

	t.Run("configuration errors do not fall through", func(t *testing.T) {
		second := stt.NewMock("never")
		chain, _ := stt.NewChain(stt.WithError(stt.WrapError("google", stt.ErrNoCredentials)), second)

		if _, err := chain.Transcribe(ctx, testUtterance()); !errors.Is(err, stt.ErrNoCredentials) {
			t.Fatalf("expected ErrNoCredentials, got %v", err)
		}
		if second.CallCount("Transcribe") != 0 {
			t.Error("second provider should not be called")
		}
	})

	t.Run("all fail", func(t *testing.T) {
		chain, _ := stt.NewChain(stt.WithError(down), stt.WithError(&stt.APIError{StatusCode: 503, Provider: "b"}))

		_, err := chain.Transcribe(ctx, testUtterance())
		var chainErr *stt.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %v", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
		if !errors.Is(err, stt.ErrUnavailable) {
			t.Error("chain error should match ErrUnavailable")
		}
	})

	t.Run("health needs one healthy provider", func(t *testing.T) {
		chain, _ := stt.NewChain(stt.WithError(down), stt.NewMock("ok"))
		if err := chain.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		chain, _ = stt.NewChain(stt.WithError(down))
		if err := chain.Health(ctx); err == nil {
			t.Error("expected error when all providers unhealthy")
		}
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		unauth    bool
	}{
		{401, false, true},
		{403, false, true},
		{429, true, false},
		{500, true, false},
		{400, false, false},
	}

	for _, tt := range tests {
		err := &stt.APIError{StatusCode: tt.code, Provider: "test"}
		if err.IsRetryable() != tt.retryable {
			t.Errorf("%d: IsRetryable = %v", tt.code, err.IsRetryable())
		}
		if err.IsUnauthorized() != tt.unauth {
			t.Errorf("%d: IsUnauthorized = %v", tt.code, err.IsUnauthorized())
		}
		if !errors.Is(err, stt.ErrUnavailable) {
			t.Errorf("%d: API errors should match ErrUnavailable", tt.code)
		}
	}
}
