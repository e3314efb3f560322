// Package protocol defines the WebSocket message types exchanged between
// the pathsense server, browser clients, and camera sources.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server commands
	TypeStart MessageType = "start_navigation" // Begin producing readings
	TypeStop  MessageType = "stop_navigation"  // Stop producing readings

	// Server → Client events
	TypeConnected MessageType = "connected"          // Sent once after connect
	TypeStarted   MessageType = "navigation_started" // Start acknowledged
	TypeStopped   MessageType = "navigation_stopped" // Stop acknowledged
	TypeUpdate    MessageType = "navigation_update"  // State snapshot broadcast

	// Source → Server messages
	TypeFrame MessageType = "frame" // Camera frame for analysis
	TypeState MessageType = "state" // Source-side status

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
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
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
func (m *Message) ParseData(v interface{}) error {
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
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// StartCommand selects the reading producer when navigation starts.
type StartCommand struct {
	// Mode is "demo" or "camera". Empty defaults to the server's configured mode.
	Mode string `json:"mode,omitempty"`
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// ConnectedData greets a newly connected client.
type ConnectedData struct {
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// AckData acknowledges a start or stop command.
type AckData struct {
	Message string `json:"message"`
	Mode    string `json:"mode,omitempty"`
}

// UpdateData is the navigation state snapshot broadcast to all clients.
type UpdateData struct {
	Running          bool    `json:"is_running"`
	Mode             string  `json:"mode"`
	DistanceCM       float64 `json:"distance"`
	Direction        string  `json:"direction"`
	ObstacleDetected bool    `json:"obstacle_detected"`
	Instruction      string  `json:"last_instruction"`
	Urgent           bool    `json:"urgent,omitempty"`
	Speak            bool    `json:"speak,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
	Category         string  `json:"category,omitempty"`
	Source           string  `json:"source,omitempty"`
}

// =============================================================================
// Source → Server Message Types
// =============================================================================

// FrameData contains a camera frame for analysis
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// StateData contains camera source status
type StateData struct {
	Connected bool   `json:"connected"`
	Label     string `json:"label,omitempty"`
	FPS       int    `json:"fps,omitempty"`
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
