package voice

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Idle, Listening, true},
		{Listening, Transcribing, true},
		{Listening, Idle, true},
		{Transcribing, Generating, true},
		{Generating, Synthesizing, true},
		{Synthesizing, Playing, true},
		{Playing, Idle, true},
		{Playing, Generating, false},
		{Idle, Playing, false},
		{Listening, Generating, false},
		{Generating, Listening, false},
		{Playing, Terminated, true},
		{Idle, Terminated, true},
		{Terminated, Idle, false},
		{Terminated, Terminated, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIllegalTransition(t *testing.T) {
	h := newHarness(nil)
	l := h.loop(t, DefaultConfig())

	if err := l.transition(Playing); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if l.State() != Idle {
		t.Errorf("rejected transition changed state to %s", l.State())
	}
}

func TestStateString(t *testing.T) {
	if Synthesizing.String() != "synthesizing" {
		t.Errorf("got %q", Synthesizing.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("got %q", State(42).String())
	}
	if b, _ := Terminated.MarshalText(); string(b) != "terminated" {
		t.Errorf("got %q", b)
	}
}

func TestTurnError(t *testing.T) {
	inner := errors.New("boom")
	err := &TurnError{Kind: KindSynthesis, State: Synthesizing, Err: inner}

	if !errors.Is(err, ErrSynthesis) || errors.Is(err, ErrPlayback) {
		t.Error("TurnError should match only its own kind")
	}
	if !errors.Is(err, inner) {
		t.Error("TurnError should unwrap")
	}
	if err.Error() != "voice: SynthesisError while synthesizing: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if KindGeneration.Message() == "" {
		t.Error("every kind needs a user notice")
	}
}

func TestStopPhraseMatching(t *testing.T) {
	cfg := DefaultConfig().WithStopPhrases("exit", "goodbye parrot")
	tests := []struct {
		text string
		want bool
	}{
		{"exit", true},
		{"Exit.", true},
		{"  EXIT!  ", true},
		{"Goodbye parrot!", true},
		{"exit the room", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := cfg.isStopPhrase(tt.text); got != tt.want {
			t.Errorf("isStopPhrase(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}

	bad := DefaultConfig().WithStopPhrases("  ...")
	if err := bad.Validate(); err == nil {
		t.Error("expected error for blank stop phrase")
	}
}
