// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import (
	"github.com/teslashibe/go-quadruped/pkg/protocol"
)

// Message is a pre-encoded frame queued for every client.
type Message struct {
	Type protocol.MessageType
	Data []byte
}

// Encode serializes a protocol message once so every client shares the bytes.
func Encode(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msg.Type, Data: data}, nil
}
