// Package protocol defines the WebSocket message types exchanged between the
// locomotion server and its viewers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → viewer messages
	TypeFrame  MessageType = "frame"  // One pose sample
	TypeStatus MessageType = "status" // Loop diagnostics

	// Viewer → server messages
	TypeObjective MessageType = "objective" // Movement intent

	// Bidirectional
	TypePing  MessageType = "ping"  // Health check
	TypePong  MessageType = "pong"  // Health check response
	TypeError MessageType = "error" // Rejected request
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
// Server → Viewer Message Types
// =============================================================================

// FrameData contains one smoothed pose sample
type FrameData struct {
	Frame         int          `json:"frame"`
	Root          [3]float64   `json:"root"`
	Rotations     [][4]float64 `json:"rotations"` // w, x, y, z per joint
	Positions     [][3]float64 `json:"positions"` // world joint positions
	Contacts      [2]bool      `json:"contacts"`  // [left, right]
	Locks         [2]bool      `json:"locks,omitzero"`
	Discontinuity bool         `json:"discontinuity"`
	Idle          bool         `json:"idle"`
	Mode          int          `json:"mode"`
	Facing        [3]float64   `json:"facing"`
}

// StatusData contains control loop diagnostics
type StatusData struct {
	Session         string     `json:"session"`
	Running         bool       `json:"running"`
	Clients         int        `json:"clients"`
	Ticks           uint64     `json:"ticks"`
	Frame           int        `json:"frame"`
	Discontinuities uint64     `json:"discontinuities"`
	Blends          int        `json:"blends"`
	Reloads         uint64     `json:"reloads"`
	State           string     `json:"state"`
	Mode            int        `json:"mode"`
	Position        [3]float64 `json:"position"`
	Facing          [3]float64 `json:"facing"`
	Objective       [3]float64 `json:"objective"`
	Moving          bool       `json:"moving"`
}

// =============================================================================
// Viewer → Server Message Types
// =============================================================================

// ObjectiveData contains a movement intent
type ObjectiveData struct {
	Direction [3]float64 `json:"direction"` // ground plane, Y ignored
	Moving    bool       `json:"moving"`
	Mode      int        `json:"mode"`
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

// ErrorData describes a rejected request
type ErrorData struct {
	Error string `json:"error"`
}
