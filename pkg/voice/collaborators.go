package voice

import (
	"context"

	"github.com/teslashibe/go-parrot/pkg/audioio"
	"github.com/teslashibe/go-parrot/pkg/memory"
	"github.com/teslashibe/go-parrot/pkg/stt"
	"github.com/teslashibe/go-parrot/pkg/tts"
)

// Capturer records one utterance. Implemented by *audioio.Capturer.
type Capturer interface {
	Capture(ctx context.Context) (*audioio.Utterance, error)
}

// Transcriber turns an utterance into text. Implemented by stt.Provider.
type Transcriber interface {
	Transcribe(ctx context.Context, u *audioio.Utterance) (*stt.Result, error)
}

// Generator produces the assistant's reply to prompt given the turns that
// came before it. Implemented by *ChatGenerator.
type Generator interface {
	Generate(ctx context.Context, history []memory.Turn, prompt string) (string, error)
}

// Synthesizer voices a reply into an audio file. Implemented by *tts.Pipeline.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.AudioResult, error)
}

// Player plays an audio file to completion. Implemented by *audioio.Player.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Components groups the collaborators of a Loop.
type Components struct {
	Capturer    Capturer
	Transcriber Transcriber
	Generator   Generator
	Synthesizer Synthesizer
	Player      Player
}

func (c Components) validate() error {
	switch {
	case c.Capturer == nil:
		return errMissing("capturer")
	case c.Transcriber == nil:
		return errMissing("transcriber")
	case c.Generator == nil:
		return errMissing("generator")
	case c.Synthesizer == nil:
		return errMissing("synthesizer")
	case c.Player == nil:
		return errMissing("player")
	}
	return nil
}

type errMissing string

func (e errMissing) Error() string {
	return "voice: missing " + string(e)
}
