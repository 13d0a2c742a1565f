package voice

import (
	"errors"
	"fmt"
)

// Loop errors.
var (
	// ErrIllegalTransition is returned when the loop is asked to make a
	// move that is not in the transition table.
	ErrIllegalTransition = errors.New("voice: illegal state transition")

	// ErrTooManyFailures is returned by Run when MaxConsecutiveFailures
	// turns in a row have failed.
	ErrTooManyFailures = errors.New("voice: too many consecutive failed turns")

	// ErrTerminated is returned when a terminated loop is run again.
	ErrTerminated = errors.New("voice: loop terminated")

	// ErrStopPhrase is returned by RunTurn when the user said a stop phrase.
	ErrStopPhrase = errors.New("voice: stop phrase heard")

	// ErrEmptyReply is returned when the generator produced no text.
	ErrEmptyReply = errors.New("voice: empty reply")
)

// Turn failure sentinels. A *TurnError matches the sentinel of its Kind
// with errors.Is.
var (
	ErrNoAudioDetected = errors.New("voice: no audio detected")
	ErrCapture         = errors.New("voice: capture failed")
	ErrRecognition     = errors.New("voice: recognition failed")
	ErrGeneration      = errors.New("voice: generation failed")
	ErrSynthesis       = errors.New("voice: synthesis failed")
	ErrPlayback        = errors.New("voice: playback failed")
)

// Kind classifies a failed turn.
type Kind int

const (
	KindNoAudio Kind = iota
	KindCapture
	KindRecognition
	KindGeneration
	KindSynthesis
	KindPlayback
)

var kinds = [...]struct {
	name     string
	sentinel error
	message  string
}{
	KindNoAudio:     {"NoAudioDetected", ErrNoAudioDetected, "I didn't hear anything."},
	KindCapture:     {"CaptureError", ErrCapture, "I can't hear you, the microphone is not available."},
	KindRecognition: {"RecognitionError", ErrRecognition, "Sorry, I couldn't understand that. Please try again."},
	KindGeneration:  {"GenerationError", ErrGeneration, "Sorry, I couldn't come up with a reply."},
	KindSynthesis:   {"SynthesisError", ErrSynthesis, "Sorry, I couldn't voice my reply."},
	KindPlayback:    {"PlaybackError", ErrPlayback, "Sorry, I couldn't play my reply."},
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kinds) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kinds[k].name
}

// Message returns the notice shown to the user for this kind of failure.
func (k Kind) Message() string {
	if k < 0 || int(k) >= len(kinds) {
		return "Something went wrong."
	}
	return kinds[k].message
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TurnError is a recoverable failure of one turn.
type TurnError struct {
	Kind  Kind
	State State // stage that failed
	Err   error
}

// Error implements the error interface.
func (e *TurnError) Error() string {
	return fmt.Sprintf("voice: %s while %s: %v", e.Kind, e.State, e.Err)
}

// Unwrap returns the underlying error.
func (e *TurnError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *TurnError) Is(target error) bool {
	return int(e.Kind) < len(kinds) && e.Kind >= 0 && target == kinds[e.Kind].sentinel
}
