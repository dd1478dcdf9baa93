package protocol

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message
func NewFrameMessage(frame FrameData) (*Message, error) {
	return NewMessage(TypeFrame, frame)
}

// NewStatusMessage creates a status message
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewObjectiveMessage creates an objective message
func NewObjectiveMessage(direction r3.Vec, moving bool, mode int) (*Message, error) {
	return NewMessage(TypeObjective, ObjectiveData{
		Direction: Vec3(direction),
		Moving:    moving,
		Mode:      mode,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: ts,
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

// NewErrorMessage creates an error message
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Error: err.Error()})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

func parseAs[T any](m *Message, want MessageType) (*T, error) {
	if m.Type != want {
		return nil, fmt.Errorf("expected %s message, got %s", want, m.Type)
	}
	var data T
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	return parseAs[FrameData](m, TypeFrame)
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	return parseAs[StatusData](m, TypeStatus)
}

// GetObjectiveData extracts objective data from a message
func (m *Message) GetObjectiveData() (*ObjectiveData, error) {
	return parseAs[ObjectiveData](m, TypeObjective)
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	return parseAs[PingData](m, TypePing)
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	return parseAs[PongData](m, TypePong)
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	return parseAs[ErrorData](m, TypeError)
}

// =============================================================================
// Vector conversion
// =============================================================================

// Vec3 flattens a vector.
func Vec3(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Quat4 flattens a quaternion as w, x, y, z.
func Quat4(q quat.Number) [4]float64 {
	return [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}
}

// Vector returns the objective direction.
func (o ObjectiveData) Vector() r3.Vec {
	return r3.Vec{X: o.Direction[0], Y: o.Direction[1], Z: o.Direction[2]}
}

// RootVector returns the root translation of a frame.
func (f FrameData) RootVector() r3.Vec {
	return r3.Vec{X: f.Root[0], Y: f.Root[1], Z: f.Root[2]}
}
