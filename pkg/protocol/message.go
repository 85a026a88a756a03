// Package protocol defines the WebSocket message types exchanged between
// landmark providers, the focus server and score dashboards.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/landmark"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Provider → Server messages
	TypeLandmarks MessageType = "landmarks" // One frame of facial landmarks
	TypeNoFace    MessageType = "no_face"   // A frame with no detected face

	// Server → Client messages
	TypeScore MessageType = "score" // Focus score update
	TypeError MessageType = "error" // Rejected message

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// ErrUnexpectedType is returned when a message is not a frame.
var ErrUnexpectedType = errors.New("unexpected message type")

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	return NewMessageAt(msgType, time.Now(), data)
}

// NewMessageAt creates a message stamped with the given time. Frame
// messages carry their capture time so replays keep their pacing. A zero
// time leaves the timestamp unset.
func NewMessageAt(msgType MessageType, at time.Time, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	msg := &Message{Type: msgType, Data: rawData}
	if !at.IsZero() {
		msg.Timestamp = at.UnixMilli()
	}
	return msg, nil
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

// Time returns the message timestamp, or the zero time when unset.
func (m *Message) Time() time.Time {
	if m.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp)
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
// Provider → Server Message Types
// =============================================================================

// LandmarksData is one frame of facial landmarks. The point count selects
// the layout (478 or 468 MediaPipe, 68 iBUG).
type LandmarksData struct {
	Points  []landmark.Point `json:"points"`
	FrameID uint64           `json:"frame_id,omitempty"`
}

// NoFaceData marks a frame in which the provider found no face.
type NoFaceData struct {
	FrameID uint64 `json:"frame_id,omitempty"`
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// ScoreData is a focus score update for one session.
type ScoreData struct {
	Session    string       `json:"session"`
	Score      int          `json:"score"`
	Engaged    bool         `json:"engaged"`
	Status     focus.Status `json:"status"`
	Calibrated bool         `json:"calibrated"`
	Frame      int          `json:"frame"`
	Reported   bool         `json:"reported,omitempty"` // Appended to the focus log
}

// ErrorData describes a rejected message.
type ErrorData struct {
	Message string `json:"message"`
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
