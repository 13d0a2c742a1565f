// Package memory holds the conversation history of a voice chat session.
//
// A History is an ordered list of user and assistant turns. It lives in
// memory for the length of a session and can be persisted through a Store:
//   - JSONStore: one conversation_history_<user>.json file per user
//   - RedisStore: one key per user in Redis
//
// Persisted documents use the layout {"<user>": [{"role": ..., "content": ...}]}
// so that history files from earlier versions load unchanged.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in the conversation.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time,omitzero"`
}

// History is the conversation of one user. MaxTurns bounds what is
// persisted, not what is kept in memory.
// All methods are safe for concurrent use.
type History struct {
	user     string
	store    Store
	maxTurns int
	logger   *slog.Logger

	mu    sync.RWMutex
	turns []Turn
}

// Option configures a History.
type Option func(*History)

// WithStore sets the persistence backend. Without one, Load and Save are no-ops.
func WithStore(s Store) Option {
	return func(h *History) { h.store = s }
}

// WithMaxTurns keeps only the newest n turns when saving. Zero keeps all.
func WithMaxTurns(n int) Option {
	return func(h *History) { h.maxTurns = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *History) { h.logger = l }
}

// New creates an empty history for user.
func New(user string, opts ...Option) *History {
	h := &History{
		user:   user,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "memory.history", "user", user)
	return h
}

// User returns the user the history belongs to.
func (h *History) User() string {
	return h.user
}

// Append adds a turn and returns it.
func (h *History) Append(role, content string) Turn {
	t := Turn{Role: role, Content: content, Time: time.Now()}
	h.mu.Lock()
	h.turns = append(h.turns, t)
	h.mu.Unlock()
	return t
}

// Turns returns a copy of all turns, oldest first.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]Turn, len(h.turns))
	copy(result, h.turns)
	return result
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Truncate drops every turn after the first n. It is used to discard the
// unfinished part of an abandoned exchange.
func (h *History) Truncate(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n >= 0 && n < len(h.turns) {
		h.turns = h.turns[:n]
	}
}

// Last returns the newest turn, if any.
func (h *History) Last() (Turn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// Load replaces the in-memory turns with the stored ones. A missing
// document leaves the history empty. On error the history is unchanged.
func (h *History) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}

	data, err := h.store.Load(ctx, h.user)
	if err != nil {
		return fmt.Errorf("memory: load history: %w", err)
	}
	if data == nil {
		h.logger.Info("no previous conversation history, starting new conversation")
		return nil
	}

	var doc map[string][]Turn
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	h.mu.Lock()
	h.turns = doc[h.user]
	n := len(h.turns)
	h.mu.Unlock()

	h.logger.Info("conversation history loaded", "turns", n)
	return nil
}

// Save writes the turns to the store.
func (h *History) Save(ctx context.Context) error {
	if h.store == nil {
		return nil
	}

	turns := h.Turns()
	if h.maxTurns > 0 && len(turns) > h.maxTurns {
		turns = turns[len(turns)-h.maxTurns:]
	}

	data, err := json.Marshal(map[string][]Turn{h.user: turns})
	if err != nil {
		return fmt.Errorf("memory: encode history: %w", err)
	}
	if err := h.store.Save(ctx, h.user, data); err != nil {
		return fmt.Errorf("memory: save history: %w", err)
	}

	h.logger.Info("conversation history saved", "turns", len(turns))
	return nil
}

// Close releases resources held by the store.
func (h *History) Close() error {
	if h.store == nil {
		return nil
	}
	return h.store.Close()
}
