// Package protocol defines the JSON messages exchanged with dashboard and
// teleoperation clients of the locomotion loop.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Loop → client messages
	TypeCycle MessageType = "cycle" // One applied control cycle
	TypeState MessageType = "state" // Driver lifecycle change
	TypeError MessageType = "error" // Rejected client request

	// Client → loop messages
	TypeCommand MessageType = "command" // Operator velocity override

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Loop → Client Message Types
// =============================================================================

// CycleData summarises one applied control cycle
type CycleData struct {
	RunID   string      `json:"run_id"`
	Cycle   int         `json:"cycle"`
	Time    float64     `json:"t"` // Seconds since robot reset
	Command CommandData `json:"command"`

	// Per leg, in FR FL RR RL order.
	LegStates     []string      `json:"leg_states"`
	Phases        []float64     `json:"phases"`
	Sources       []string      `json:"sources"`
	ContactForces [4][3]float64 `json:"contact_forces"`

	Velocity [3]float64 `json:"velocity"` // Estimated, body frame
}

// StateData reports a driver lifecycle transition
type StateData struct {
	RunID  string `json:"run_id"`
	State  string `json:"state"` // "initializing", "running", "terminated"
	Cycles int    `json:"cycles"`
}

// ErrorData describes why a client request was rejected
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Client → Loop Message Types
// =============================================================================

// CommandData is a body velocity command
type CommandData struct {
	Linear  [3]float64 `json:"linear"`          // m/s, body frame
	YawRate float64    `json:"yaw_rate"`        // rad/s
	Hold    float64    `json:"hold,omitempty"`  // Seconds of loop time, 0 until cleared
	Clear   bool       `json:"clear,omitempty"` // Remove any operator override
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
