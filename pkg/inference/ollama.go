package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-parrot/internal/httpc"
)

const providerOllama = "ollama"

// Ollama talks to Ollama's native /api/chat endpoint.
// Replies are always requested as an NDJSON stream; Chat accumulates it.
type Ollama struct {
	baseURL string
	config  *Config
	http    *http.Client
	health  *http.Client
	logger  *slog.Logger
}

// NewOllama creates a new Ollama provider.
func NewOllama(opts ...Option) (*Ollama, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		// Streams are bounded by the request context, not a client timeout.
		hc = httpc.NewClient(0)
	}

	return &Ollama{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		http:    hc,
		health:  httpc.NewClient(httpc.DefaultPingTimeout),
		logger:  cfg.Logger.With("component", "inference.ollama"),
	}, nil
}

// Chat streams a reply and returns the concatenated text.
func (o *Ollama) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if o.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	stream, err := o.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := Collect(stream)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return nil, WrapError(providerOllama, ErrEmptyResponse)
	}
	resp.LatencyMs = time.Since(start).Milliseconds()

	o.logger.Debug("chat complete",
		"model", resp.Model,
		"chars", len(resp.Message.Content),
		"eval_tokens", resp.Usage.CompletionTokens,
		"latency_ms", resp.LatencyMs,
	)
	return resp, nil
}

// Stream opens a streaming chat request.
func (o *Ollama) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	body, err := json.Marshal(o.buildChatPayload(req))
	if err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("marshal payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if o.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	}

	resp, err := o.doWithRetry(ctx, httpReq, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseError(providerOllama, resp)
	}

	return &ollamaStream{
		reader: bufio.NewReader(resp.Body),
		body:   resp.Body,
	}, nil
}

// Health checks that the server answers and has the configured model pulled.
func (o *Ollama) Health(ctx context.Context) error {
	models, err := o.Models(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if sameModel(m, o.config.Model) {
			return nil
		}
	}
	return WrapError(providerOllama, fmt.Errorf("%w: %q (available: %s)",
		ErrModelNotFound, o.config.Model, strings.Join(models, ", ")))
}

// Models lists the models available on the server.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("create request: %w", err))
	}

	resp, err := o.health.Do(req)
	if err != nil {
		return nil, WrapError(providerOllama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(providerOllama, resp)
	}

	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, WrapError(providerOllama, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		names = append(names, name)
	}
	return names, nil
}

// Close releases resources.
func (o *Ollama) Close() error {
	return nil
}

func (o *Ollama) buildChatPayload(req *ChatRequest) map[string]any {
	model := req.Model
	if model == "" {
		model = o.config.Model
	}

	payload := map[string]any{
		"model":    model,
		"messages": req.Messages,
		"stream":   true,
	}
	if o.config.KeepAlive != "" {
		payload["keep_alive"] = o.config.KeepAlive
	}

	options := map[string]any{}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.config.MaxTokens
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = o.config.Temperature
	}
	if temp > 0 {
		options["temperature"] = temp
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if len(req.Stop) > 0 {
		options["stop"] = req.Stop
	}
	if len(options) > 0 {
		payload["options"] = options
	}

	return payload
}

// doWithRetry performs the request with retry logic. Only connection
// failures and retryable statuses are retried; a started stream never is.
func (o *Ollama) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := o.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(providerOllama, err)
			o.logger.Warn("request failed, retrying",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			lastErr = parseError(providerOllama, resp)
			resp.Body.Close()
			o.logger.Warn("retrying request",
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads and parses an error response. Ollama replies with
// {"error": "..."}; OpenAI-style {"error": {"message": ...}} is also accepted.
func parseError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := strings.TrimSpace(string(body))
	code := ""

	var flat struct {
		Error string `json:"error"`
	}
	var nested struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		message = flat.Error
	} else if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		message = nested.Error.Message
		code = nested.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   provider,
	}
}

// sameModel treats "llama3" and "llama3:latest" as the same model.
func sameModel(have, want string) bool {
	return strings.TrimSuffix(have, ":latest") == strings.TrimSuffix(want, ":latest")
}

// ollamaStream implements Stream over Ollama's NDJSON body.
type ollamaStream struct {
	reader *bufio.Reader
	body   io.ReadCloser
	done   bool
	closed bool
}

// chatChunk is one NDJSON line of an /api/chat reply.
type chatChunk struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	DoneReason      string `json:"done_reason"`
	Error           string `json:"error"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Recv returns the next stream chunk.
func (s *ollamaStream) Recv() (*StreamChunk, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return &StreamChunk{Done: true}, nil
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			if errors.Is(err, io.EOF) {
				return nil, WrapError(providerOllama,
					fmt.Errorf("%w: stream ended before done", ErrMalformedResponse))
			}
			return nil, WrapError(providerOllama, fmt.Errorf("read stream: %w", err))
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var c chatChunk
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, WrapError(providerOllama, fmt.Errorf("%w: %v", ErrMalformedResponse, err))
		}
		if c.Error != "" {
			return nil, &APIError{StatusCode: http.StatusOK, Message: c.Error, Provider: providerOllama}
		}

		chunk := &StreamChunk{
			Delta: c.Message.Content,
			Model: c.Model,
			Done:  c.Done,
		}
		if c.Done {
			s.done = true
			chunk.FinishReason = c.DoneReason
			if chunk.FinishReason == "" {
				chunk.FinishReason = "stop"
			}
			chunk.Usage = &Usage{
				PromptTokens:     c.PromptEvalCount,
				CompletionTokens: c.EvalCount,
				TotalTokens:      c.PromptEvalCount + c.EvalCount,
			}
		}
		return chunk, nil
	}
}

// Close stops the stream.
func (s *ollamaStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Verify Ollama implements Provider at compile time.
var _ Provider = (*Ollama)(nil)
