package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-parrot/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI works with any OpenAI-compatible chat completions API
// (Ollama /v1, vLLM, llama.cpp server, LM Studio, OpenAI itself).
type OpenAI struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI-compatible provider. Without WithBaseURL
// it targets Ollama's /v1 surface.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = DefaultOpenAIBaseURL
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = httpc.NewClient(0)
	}

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(oc),
		logger: cfg.Logger.With("component", "inference.openai"),
	}, nil
}

// Chat generates a chat completion.
func (c *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var (
		result openai.ChatCompletionResponse
		err    error
	)
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}
		result, err = c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
		if err == nil {
			break
		}
		err = c.classify(ctx, err)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
		c.logger.Warn("retrying request",
			"attempt", attempt+1,
			"status", apiErr.StatusCode,
		)
	}
	if err != nil {
		return nil, err
	}

	if len(result.Choices) == 0 {
		return nil, WrapError(providerOpenAI, fmt.Errorf("%w: no choices returned", ErrMalformedResponse))
	}
	choice := result.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyResponse)
	}

	return &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
		Model:     result.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Stream returns a streaming chat response.
func (c *OpenAI) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	s, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	return &openaiStream{stream: s, classify: func(err error) error { return c.classify(ctx, err) }}, nil
}

// Health lists models to check connectivity and credentials.
func (c *OpenAI) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, httpc.DefaultPingTimeout)
	defer cancel()

	models, err := c.client.ListModels(ctx)
	if err != nil {
		return c.classify(ctx, err)
	}
	for _, m := range models.Models {
		if sameModel(m.ID, c.config.Model) {
			return nil
		}
	}
	// Some compatible servers list nothing useful; reachability is enough there.
	if len(models.Models) > 0 {
		c.logger.Warn("configured model not listed by server", "model", c.config.Model)
	}
	return nil
}

// Close releases resources.
func (c *OpenAI) Close() error {
	return nil
}

func (c *OpenAI) buildRequest(req *ChatRequest, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}

	out := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Stop:     req.Stop,
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}
	out.MaxTokens = maxTokens

	temp := req.Temperature
	if temp == 0 {
		temp = c.config.Temperature
	}
	out.Temperature = float32(temp)
	out.TopP = float32(req.TopP)

	return out
}

func (c *OpenAI) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return ctx.Err()
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   providerOpenAI,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    fmt.Sprint(reqErr.Err),
			Provider:   providerOpenAI,
		}
	}
	return WrapError(providerOpenAI, err)
}

// openaiStream adapts go-openai's SSE reader to Stream.
type openaiStream struct {
	stream   *openai.ChatCompletionStream
	classify func(error) error
	done     bool
}

// Recv returns the next stream chunk.
func (s *openaiStream) Recv() (*StreamChunk, error) {
	if s.done {
		return &StreamChunk{Done: true}, nil
	}

	for {
		ev, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return &StreamChunk{Done: true}, nil
		}
		if err != nil {
			return nil, s.classify(err)
		}

		chunk := &StreamChunk{Model: ev.Model}
		if ev.Usage != nil {
			chunk.Usage = &Usage{
				PromptTokens:     ev.Usage.PromptTokens,
				CompletionTokens: ev.Usage.CompletionTokens,
				TotalTokens:      ev.Usage.TotalTokens,
			}
		}
		if len(ev.Choices) == 0 {
			if chunk.Usage != nil {
				return chunk, nil
			}
			continue
		}

		choice := ev.Choices[0]
		chunk.Delta = choice.Delta.Content
		chunk.FinishReason = string(choice.FinishReason)
		return chunk, nil
	}
}

// Close stops the stream.
func (s *openaiStream) Close() error {
	s.stream.Close()
	return nil
}

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
