package voice

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-parrot/pkg/memory"
)

// Session is the state owned by one conversation: who is talking, what
// has been said, and how many turns have been taken.
type Session struct {
	ID        string
	User      string
	History   *memory.History
	StartedAt time.Time

	turns atomic.Int64
}

// NewSession starts a session for user. A nil history starts empty and
// is not persisted.
func NewSession(user string, history *memory.History) *Session {
	if history == nil {
		history = memory.New(user)
	}
	return &Session{
		ID:        uuid.NewString(),
		User:      user,
		History:   history,
		StartedAt: time.Now(),
	}
}

// Turns returns the number of turns started in this session.
func (s *Session) Turns() int {
	return int(s.turns.Load())
}

func (s *Session) nextTurn() int {
	return int(s.turns.Add(1))
}
