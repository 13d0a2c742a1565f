// Package inference provides a unified interface for chat-style text generation.
//
// Providers hide the wire protocol of the generation service. Ollama's native
// /api/chat endpoint is the default backend; any OpenAI-compatible server
// (including Ollama's /v1 surface) works through the OpenAI provider.
//
// Example usage:
//
//	client, _ := inference.NewOllama(
//	    inference.WithBaseURL("http://127.0.0.1:11434"),
//	    inference.WithModel("llama3"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{
//	        inference.NewSystemMessage("You are a friendly parrot."),
//	        inference.NewUserMessage("Hello!"),
//	    },
//	})
package inference

import (
	"context"
	"strings"
)

// Provider is the unified chat inference interface.
type Provider interface {
	// Chat generates a complete response from a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream generates a streaming response for incremental output.
	Stream(ctx context.Context, req *ChatRequest) (Stream, error)

	// Health checks that the service is reachable and the model is available.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Stream is a streaming response.
type Stream interface {
	// Recv returns the next chunk. A chunk with Done set ends the stream.
	Recv() (*StreamChunk, error)

	// Close stops the stream and releases resources.
	Close() error
}

// StreamChunk is a piece of a streaming response.
type StreamChunk struct {
	// Delta is the incremental text content.
	Delta string

	// FinishReason indicates why generation stopped (stop, length).
	FinishReason string

	// Done is true when the stream is complete.
	Done bool

	// Usage is set on the final chunk when the backend reports it.
	Usage *Usage

	// Model is the model that produced the chunk, when reported.
	Model string
}

// ChatRequest for chat completions.
type ChatRequest struct {
	// Messages is the conversation, oldest first.
	Messages []Message

	// Model overrides the default model.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0). Zero keeps the model default.
	Temperature float64

	// TopP controls nucleus sampling.
	TopP float64

	// Stop sequences that halt generation.
	Stop []string
}

// ChatResponse from chat completion.
type ChatResponse struct {
	// Message is the assistant's response.
	Message Message

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Usage tracks token consumption.
	Usage Usage

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Collect drains s and assembles the chunks into a single response.
// The stream is closed before Collect returns.
func Collect(s Stream) (*ChatResponse, error) {
	defer s.Close()

	var (
		b    strings.Builder
		resp = &ChatResponse{}
	)
	for {
		chunk, err := s.Recv()
		if err != nil {
			return nil, err
		}
		b.WriteString(chunk.Delta)
		if chunk.Model != "" {
			resp.Model = chunk.Model
		}
		if chunk.FinishReason != "" {
			resp.FinishReason = chunk.FinishReason
		}
		if chunk.Usage != nil {
			resp.Usage = *chunk.Usage
		}
		if chunk.Done {
			break
		}
	}

	resp.Message = NewAssistantMessage(b.String())
	return resp, nil
}
