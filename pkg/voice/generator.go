package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-parrot/pkg/inference"
	"github.com/teslashibe/go-parrot/pkg/memory"
)

// PromptMode selects how the start prompt reaches the model.
type PromptMode string

const (
	// PromptSystem sends the start prompt as a leading system message.
	PromptSystem PromptMode = "system"

	// PromptPrefix prepends the start prompt to the new user message only.
	// History keeps the raw transcript, so earlier user turns are sent
	// without the prompt.
	PromptPrefix PromptMode = "prefix"
)

// ParsePromptMode maps a config value to a PromptMode.
func ParsePromptMode(s string) (PromptMode, error) {
	switch PromptMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PromptSystem:
		return PromptSystem, nil
	case PromptPrefix:
		return PromptPrefix, nil
	}
	return "", fmt.Errorf("voice: unknown prompt mode %q", s)
}

// ChatGenerator generates replies with a chat model. The whole
// conversation is sent on every call; the model keeps no state.
type ChatGenerator struct {
	provider    inference.Provider
	startPrompt string
	mode        PromptMode
	model       string
	logger      *slog.Logger
}

// GeneratorOption configures a ChatGenerator.
type GeneratorOption func(*ChatGenerator)

// WithStartPrompt sets the persona prompt sent before the conversation.
func WithStartPrompt(prompt string) GeneratorOption {
	return func(g *ChatGenerator) { g.startPrompt = prompt }
}

// WithPromptMode sets how the start prompt is sent.
func WithPromptMode(mode PromptMode) GeneratorOption {
	return func(g *ChatGenerator) { g.mode = mode }
}

// WithModel overrides the provider's configured model.
func WithModel(model string) GeneratorOption {
	return func(g *ChatGenerator) { g.model = model }
}

// WithGeneratorLogger sets the structured logger.
func WithGeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *ChatGenerator) { g.logger = l }
}

// NewChatGenerator creates a generator over provider.
func NewChatGenerator(provider inference.Provider, opts ...GeneratorOption) *ChatGenerator {
	g := &ChatGenerator{
		provider: provider,
		mode:     PromptSystem,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "voice.generator")
	return g
}

// Generate returns the model's reply to prompt.
func (g *ChatGenerator) Generate(ctx context.Context, history []memory.Turn, prompt string) (string, error) {
	req := &inference.ChatRequest{
		Messages: g.messages(history, prompt),
		Model:    g.model,
	}

	start := time.Now()
	resp, err := g.provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}

	g.logger.Debug("reply generated",
		"model", resp.Model,
		"messages", len(req.Messages),
		"latency", time.Since(start),
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return reply, nil
}

func (g *ChatGenerator) messages(history []memory.Turn, prompt string) []inference.Message {
	msgs := make([]inference.Message, 0, len(history)+2)

	if g.mode == PromptSystem && g.startPrompt != "" {
		msgs = append(msgs, inference.NewSystemMessage(g.startPrompt))
	}
	for _, t := range history {
		msgs = append(msgs, inference.Message{Role: inference.ParseRole(t.Role), Content: t.Content})
	}

	if g.mode == PromptPrefix {
		prompt = g.startPrompt + prompt
	}
	return append(msgs, inference.NewUserMessage(prompt))
}
