package inference

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	mock := NewMock("Squawk!")

	resp, err := mock.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("Hello")},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Message.Content != "Squawk!" {
		t.Errorf("Expected scripted reply, got %q", resp.Message.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish_reason 'stop', got %s", resp.FinishReason)
	}

	stream, err := mock.Stream(ctx, &ChatRequest{})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	streamed, err := Collect(stream)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if streamed.Message.Content != "Squawk!" {
		t.Errorf("Expected streamed reply, got %q", streamed.Message.Content)
	}

	if mock.CallCount("Chat") != 1 {
		t.Errorf("Expected 1 Chat call, got %d", mock.CallCount("Chat"))
	}
	if mock.CallCount("Stream") != 1 {
		t.Errorf("Expected 1 Stream call, got %d", mock.CallCount("Stream"))
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("Expected 0 calls after reset")
	}
}

func TestMockWithError(t *testing.T) {
	ctx := context.Background()
	testErr := errors.New("test error")
	mock := WithError(testErr)

	if _, err := mock.Chat(ctx, &ChatRequest{}); !errors.Is(err, testErr) {
		t.Errorf("Expected test error, got: %v", err)
	}
	if _, err := mock.Stream(ctx, &ChatRequest{}); !errors.Is(err, testErr) {
		t.Errorf("Expected test error, got: %v", err)
	}
	if err := mock.Health(ctx); !errors.Is(err, testErr) {
		t.Errorf("Expected test error, got: %v", err)
	}
}

func TestMockLastCall(t *testing.T) {
	mock := NewMock()

	if mock.LastCall() != nil {
		t.Error("Expected nil LastCall before any calls")
	}

	req := &ChatRequest{Messages: []Message{NewUserMessage("hi")}}
	mock.Chat(context.Background(), req)

	last := mock.LastCall()
	if last == nil {
		t.Fatal("Expected non-nil LastCall after call")
	}
	if last.Method != "Chat" {
		t.Errorf("Expected method 'Chat', got %s", last.Method)
	}
	if last.Request != req {
		t.Error("Expected the request to be recorded")
	}
}

func TestCollect(t *testing.T) {
	resp, err := Collect(NewSliceStream("Pretty ", "bird", "!"))
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if resp.Message.Content != "Pretty bird!" {
		t.Errorf("Expected concatenated deltas, got %q", resp.Message.Content)
	}
	if resp.Message.Role != RoleAssistant {
		t.Errorf("Expected assistant role, got %s", resp.Message.Role)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("Expected finish reason from final chunk, got %q", resp.FinishReason)
	}
}

func TestCollectClosesStream(t *testing.T) {
	s := NewSliceStream("x")
	if _, err := Collect(s); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, err := s.Recv(); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed after Collect, got %v", err)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Apply(
		WithBaseURL("http://10.0.0.5:11434"),
		WithAPIKey("test-key"),
		WithModel("mistral"),
		WithKeepAlive("10m"),
		WithMaxTokens(512),
		WithTemperature(0.5),
		WithTimeout(time.Minute),
		WithRetry(0, 0),
	)

	if cfg.BaseURL != "http://10.0.0.5:11434" {
		t.Errorf("Expected custom URL, got %s", cfg.BaseURL)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("Expected test-key, got %s", cfg.APIKey)
	}
	if cfg.Model != "mistral" {
		t.Errorf("Expected mistral, got %s", cfg.Model)
	}
	if cfg.KeepAlive != "10m" {
		t.Errorf("Expected keep alive 10m, got %s", cfg.KeepAlive)
	}
	if cfg.MaxTokens != 512 {
		t.Errorf("Expected 512, got %d", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.5 {
		t.Errorf("Expected 0.5, got %f", cfg.Temperature)
	}
	if cfg.Timeout != time.Minute {
		t.Errorf("Expected 1m timeout, got %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("Expected 0 retries, got %d", cfg.MaxRetries)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Expected Ollama URL, got %s", cfg.BaseURL)
	}
	if cfg.Model != "llama3" {
		t.Errorf("Expected llama3, got %s", cfg.Model)
	}
	if cfg.Timeout != 120*time.Second {
		t.Errorf("Expected 120s timeout, got %v", cfg.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}

	cfg.Model = ""
	if err := cfg.Validate(); !errors.Is(err, ErrNoModel) {
		t.Errorf("Expected ErrNoModel, got %v", err)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status      int
		retryable   bool
		notFound    bool
		serverError bool
	}{
		{429, true, false, false},
		{401, false, false, false},
		{404, false, true, false},
		{500, true, false, true},
		{503, true, false, true},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Message: "x", Provider: "test"}
		if err.IsRetryable() != tt.retryable {
			t.Errorf("%d: IsRetryable() = %v", tt.status, err.IsRetryable())
		}
		if err.IsNotFound() != tt.notFound {
			t.Errorf("%d: IsNotFound() = %v", tt.status, err.IsNotFound())
		}
		if err.IsServerError() != tt.serverError {
			t.Errorf("%d: IsServerError() = %v", tt.status, err.IsServerError())
		}
	}

	err := &APIError{StatusCode: 400, Message: "bad request", Code: "invalid_model", Provider: "test"}
	if err.Error() == "" {
		t.Error("Expected non-empty error string")
	}
}

func TestChainError(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	chainErr := &ChainError{Errors: []error{err1, err2}}
	if !errors.Is(chainErr, err1) || !errors.Is(chainErr, err2) {
		t.Error("ChainError should expose every provider error")
	}
	if !strings.Contains(chainErr.Error(), "all 2 providers failed") {
		t.Errorf("unexpected message %q", chainErr.Error())
	}
}

func TestAPIErrorSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want error
	}{
		{"model not pulled", &APIError{StatusCode: 404, Message: `model "phi3" not found, try pulling it first`}, ErrModelNotFound},
		{"overloaded", &APIError{StatusCode: 503, Message: "busy"}, ErrProviderUnavailable},
		{"rate limited", &APIError{StatusCode: 429}, ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
		})
	}

	wrongPath := &APIError{StatusCode: 404, Message: "404 page not found"}
	if errors.Is(wrongPath, ErrModelNotFound) {
		t.Error("plain 404 should not look like a missing model")
	}
	if errors.Is(&APIError{StatusCode: 401}, ErrProviderUnavailable) {
		t.Error("401 should not be treated as unavailable")
	}
}

func TestMessageHelpers(t *testing.T) {
	sys := NewSystemMessage("You are helpful")
	if sys.Role != RoleSystem || sys.Content != "You are helpful" {
		t.Error("NewSystemMessage failed")
	}

	user := NewUserMessage("Hello")
	if user.Role != RoleUser || user.Content != "Hello" {
		t.Error("NewUserMessage failed")
	}

	asst := NewAssistantMessage("Hi there")
	if asst.Role != RoleAssistant || asst.Content != "Hi there" {
		t.Error("NewAssistantMessage failed")
	}
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"system":    RoleSystem,
		"assistant": RoleAssistant,
		"user":      RoleUser,
		"":          RoleUser,
		"tool":      RoleUser,
	}
	for in, want := range tests {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %s, want %s", in, got, want)
		}
	}
}
