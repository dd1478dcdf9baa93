// Package motion stitches motion-capture segments into a continuous pose
// stream.
//
// A Library cuts clips into segments at foot-contact changes. A Selecter
// picks the next segment to play from the character's pose, facing and
// objective. A Generator walks a cursor through the current segment one frame
// per call, aligning each new segment onto the pose where the previous one
// ended and ramping in the residual drift correction across the segment.
//
// Generator and Selecter are not safe for concurrent use; each character owns
// one of each. Clips are shared read-only.
package motion

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// Foot names one of the two contact joints.
type Foot int

const (
	// FootLeft is the first contact joint.
	FootLeft Foot = iota

	// FootRight is the second contact joint.
	FootRight
)

// Opposite returns the other foot.
func (f Foot) Opposite() Foot {
	if f == FootLeft {
		return FootRight
	}
	return FootLeft
}

// String returns "left" or "right".
func (f Foot) String() string {
	if f == FootLeft {
		return "left"
	}
	return "right"
}

// State is the generator's locomotion mode.
type State int

const (
	// StateIdle plays idle segments anchored to the pose where idling began.
	StateIdle State = iota

	// StateMoving plays segments from the active mode library.
	StateMoving
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	default:
		return "unknown"
	}
}

// Node is a playable span of one clip plus the transforms that place it in
// the world. Nodes are values; a new one is made at every hand-off.
type Node struct {
	// Segment is the library entry the node plays.
	Segment *Segment

	// Clip is the source clip.
	Clip *bvh.Clip

	// StartFrame and EndFrame bound the span, inclusive.
	StartFrame int
	EndFrame   int

	// Alignment re-bases the clip's root into world space.
	Alignment xform.Rigid

	// RequiredTranslation and RequiredYRotation are the drift corrections
	// reached at EndFrame; they are ramped in linearly from StartFrame.
	RequiredTranslation r3.Vec
	RequiredYRotation   float64
}

func newNode(seg *Segment, align xform.Rigid, translation r3.Vec, yaw float64) Node {
	return Node{
		Segment:             seg,
		Clip:                seg.Clip,
		StartFrame:          seg.StartFrame,
		EndFrame:            seg.EndFrame,
		Alignment:           align,
		RequiredTranslation: translation,
		RequiredYRotation:   yaw,
	}
}

// Len returns the number of frames in the node.
func (n Node) Len() int {
	return n.EndFrame - n.StartFrame + 1
}

// Ramp returns the drift-correction scale at frame: 0 at StartFrame, 1 at
// EndFrame, linear in between.
func (n Node) Ramp(frame int) float64 {
	if n.EndFrame <= n.StartFrame {
		return 1
	}
	s := float64(frame-n.StartFrame) / float64(n.EndFrame-n.StartFrame)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Sample is one raw frame of the stream.
type Sample struct {
	// Frame counts continuous frames produced so far; it does not advance on
	// discontinuous samples. Numbering is 1-based: the first continuous
	// sample reports 1.
	Frame int

	// ClipFrame is the frame of the current node's clip the sample was read
	// from.
	ClipFrame int

	// Data holds world-space root transform and local joint transforms.
	Data bvh.Frame

	// Contacts reports, per foot, whether the contact joint is planted.
	Contacts [2]bool

	// Discontinuity marks the last sample of a segment, natural or forced.
	Discontinuity bool
}

// Translation returns the world-space root position.
func (s Sample) Translation() r3.Vec {
	return s.Data.Translations[0]
}

// Rotations returns the joint rotations; the root entry is in world space.
func (s Sample) Rotations() []quat.Number {
	return s.Data.Rotations
}

// Query is the kinematic state handed to Selecter.NextNode.
type Query struct {
	Pose      bvh.Pose
	Facing    r3.Vec
	Objective r3.Vec

	// LastFoot is the foot planted when the previous segment ended.
	LastFoot Foot
}

// IdleQuery is the kinematic state handed to Selecter.IdleNode.
type IdleQuery struct {
	Pose      bvh.Pose
	Facing    r3.Vec
	Reference bvh.Pose
}
