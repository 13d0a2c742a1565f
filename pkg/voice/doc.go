// Package voice runs a spoken conversation one turn at a time.
//
// A Loop drives five collaborators in a fixed order:
//
//	capture → transcribe → generate → synthesize → play
//
// Each turn finishes before the next one starts. The loop is a state
// machine over State; the allowed moves live in a transition table and
// anything else fails with ErrIllegalTransition.
//
// # Usage
//
//	session := voice.NewSession("alice", memory.New("alice"))
//	loop, err := voice.New(session, voice.Components{
//	    Capturer:    capturer,     // *audioio.Capturer
//	    Transcriber: recognizer,   // stt.Provider
//	    Generator:   voice.NewChatGenerator(llm, voice.WithStartPrompt(prompt)),
//	    Synthesizer: pipeline,     // *tts.Pipeline
//	    Player:      player,       // *audioio.Player
//	}, voice.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Run blocks until ctx is cancelled, Stop is called, or the user
//	// says the stop phrase.
//	if err := loop.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Failures
//
// A failed stage ends the turn, never the loop. The failure is returned from
// RunTurn as a *TurnError carrying a Kind, reported through the Notifier,
// and the loop goes back to listening. Only cancellation, the stop phrase,
// and the optional MaxConsecutiveFailures limit end Run.
//
// # Latency Metrics
//
// Every completed turn records per-stage latency:
//
//	m := loop.Metrics().Current()
//	fmt.Println(m.FormatLatency())
//	// 1.2s ASR | 2.4s LLM | 3.1s TTS | 2.8s PLAY | 6.7s TOTAL
package voice
