// Package hub provides a thread-safe websocket broadcast hub
// using the channel-based fan-out pattern.
package hub

// Message is a pre-encoded frame sent to every client as a text message.
type Message struct {
	Data []byte
}

// NewJSONMessage creates a message from JSON bytes.
func NewJSONMessage(data []byte) Message {
	return Message{Data: data}
}
