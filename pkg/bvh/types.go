// Package bvh loads BVH motion-capture clips and evaluates them.
//
// A Clip keeps the parsed channel data per frame (local joint translations and
// rotations) together with cached world joint positions, so joint speeds and
// contact queries are cheap. Clips are read-only after loading and may be
// shared between characters.
package bvh

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Channel identifies one animated degree of freedom of a joint.
type Channel int

const (
	XPosition Channel = iota
	YPosition
	ZPosition
	XRotation
	YRotation
	ZRotation
)

var channelSpelling = [...]string{
	XPosition: "Xposition",
	YPosition: "Yposition",
	ZPosition: "Zposition",
	XRotation: "Xrotation",
	YRotation: "Yrotation",
	ZRotation: "Zrotation",
}

// String returns the BVH spelling of the channel.
func (c Channel) String() string {
	if c < 0 || int(c) >= len(channelSpelling) {
		return "unknown"
	}
	return channelSpelling[c]
}

func parseChannel(s string) (Channel, bool) {
	for i, name := range channelSpelling {
		if name == s {
			return Channel(i), true
		}
	}
	return 0, false
}

// IsRotation reports whether the channel carries an Euler angle.
func (c Channel) IsRotation() bool {
	return c >= XRotation
}

func (c Channel) axis() byte {
	return "XYZXYZ"[c]
}

// Joint is one node of the skeleton hierarchy. Parents always precede their
// children in Clip.Joints.
type Joint struct {
	Name     string
	Parent   int // -1 for the root
	Offset   r3.Vec
	Channels []Channel

	// EndSite is the offset of the joint's end effector, if it has one.
	EndSite *r3.Vec
}

// Frame is the local state of every joint at one instant.
type Frame struct {
	// Translations are local joint translations: the joint offset plus any
	// position channels. For the root this is its position in clip space.
	Translations []r3.Vec

	// Rotations are local joint rotations.
	Rotations []quat.Number
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	out := Frame{
		Translations: make([]r3.Vec, len(f.Translations)),
		Rotations:    make([]quat.Number, len(f.Rotations)),
	}
	copy(out.Translations, f.Translations)
	copy(out.Rotations, f.Rotations)
	return out
}

// Pose holds world-space joint positions indexed like Clip.Joints.
type Pose []r3.Vec

// Root returns the root joint position.
func (p Pose) Root() r3.Vec {
	if len(p) == 0 {
		return r3.Vec{}
	}
	return p[0]
}

// Clone returns a copy of p.
func (p Pose) Clone() Pose {
	if p == nil {
		return nil
	}
	out := make(Pose, len(p))
	copy(out, p)
	return out
}
