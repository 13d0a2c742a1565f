package voice

import (
	"fmt"
	"io"

	"github.com/teslashibe/go-parrot/pkg/memory"
)

// Notice is a user-visible report of a failed turn.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Notifier tells the user that a turn failed.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// NewPrintNotifier prints notices to w, one per line.
func NewPrintNotifier(w io.Writer) Notifier {
	return NotifierFunc(func(n Notice) {
		fmt.Fprintln(w, n.Message)
	})
}

// Observer receives loop events for display. Methods are called from the
// loop goroutine and must not block.
type Observer interface {
	StateChanged(from, to State)
	TurnAppended(t memory.Turn)
	Noticed(n Notice)
	TurnEnded(m Metrics)
}

// Observers fans every event out to each non-nil observer, in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) StateChanged(from, to State) {
	for _, o := range m {
		o.StateChanged(from, to)
	}
}

func (m multiObserver) TurnAppended(t memory.Turn) {
	for _, o := range m {
		o.TurnAppended(t)
	}
}

func (m multiObserver) Noticed(n Notice) {
	for _, o := range m {
		o.Noticed(n)
	}
}

func (m multiObserver) TurnEnded(metrics Metrics) {
	for _, o := range m {
		o.TurnEnded(metrics)
	}
}
