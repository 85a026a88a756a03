package protocol

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/landmark"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewLandmarksMessage creates a landmark frame message. A nil set produces
// a no_face message.
func NewLandmarksMessage(set *landmark.Set, frameID uint64, at time.Time) (*Message, error) {
	if set == nil {
		return NewNoFaceMessage(frameID, at)
	}
	return NewMessageAt(TypeLandmarks, at, LandmarksData{
		Points:  set.Points,
		FrameID: frameID,
	})
}

// NewNoFaceMessage creates a no_face message
func NewNoFaceMessage(frameID uint64, at time.Time) (*Message, error) {
	return NewMessageAt(TypeNoFace, at, NoFaceData{FrameID: frameID})
}

// NewScoreMessage creates a score update from an estimator snapshot
func NewScoreMessage(session string, state focus.State, reported bool) (*Message, error) {
	return NewMessage(TypeScore, ScoreData{
		Session:    session,
		Score:      state.Score,
		Engaged:    state.Engaged,
		Status:     state.Status,
		Calibrated: state.Calibrated,
		Frame:      state.Frame,
		Reported:   reported,
	})
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: err.Error()})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// IsFrame reports whether the message carries a frame for the estimator.
func (m *Message) IsFrame() bool {
	return m.Type == TypeLandmarks || m.Type == TypeNoFace
}

// LandmarkSet extracts the frame's landmark set. A no_face message yields
// a nil set and no error.
func (m *Message) LandmarkSet() (*landmark.Set, error) {
	switch m.Type {
	case TypeNoFace:
		return nil, nil
	case TypeLandmarks:
		var data LandmarksData
		if err := m.ParseData(&data); err != nil {
			return nil, fmt.Errorf("failed to parse landmarks: %w", err)
		}
		if len(data.Points) == 0 {
			return nil, fmt.Errorf("%w: landmarks message without points", landmark.ErrMalformed)
		}
		return landmark.FromPoints(data.Points), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedType, m.Type)
	}
}

// GetScoreData extracts score data from a message
func (m *Message) GetScoreData() (*ScoreData, error) {
	var data ScoreData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
