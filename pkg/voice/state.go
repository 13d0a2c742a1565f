package voice

import "fmt"

// State is a stage of the conversation loop.
type State int

const (
	Idle State = iota
	Listening
	Transcribing
	Generating
	Synthesizing
	Playing
	Terminated
)

var stateNames = [...]string{
	Idle:         "idle",
	Listening:    "listening",
	Transcribing: "transcribing",
	Generating:   "generating",
	Synthesizing: "synthesizing",
	Playing:      "playing",
	Terminated:   "terminated",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// transitions lists the states reachable from each state. Terminated is
// reachable from every state and is not listed.
var transitions = map[State][]State{
	Idle:         {Listening},
	Listening:    {Transcribing, Idle},
	Transcribing: {Generating, Idle},
	Generating:   {Synthesizing, Idle},
	Synthesizing: {Playing, Idle},
	Playing:      {Idle},
}

// CanTransition reports whether the loop may move from one state to another.
func CanTransition(from, to State) bool {
	if from == Terminated {
		return false
	}
	if to == Terminated {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
