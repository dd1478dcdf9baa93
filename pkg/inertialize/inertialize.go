// Package inertialize smooths a raw sample stream across discontinuities.
//
// When the source reports that a sample ends its segment, the next sample is
// treated as a jump: the manager records the offset between the frame it last
// emitted and the new source frame, then lets that offset decay exponentially
// so the output glides onto the new trajectory instead of popping. Foot
// contacts pass through and can pin a planted foot in place until it drifts
// too far from where it was planted.
package inertialize

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/motion"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// Source produces raw samples, typically motion.Generator.Next.
type Source func() motion.Sample

// Options configures a Manager.
type Options struct {
	// HalfLife is the time, in seconds, for an offset to halve. Zero cuts
	// without blending.
	HalfLife float64

	// FrameTime is the duration of one sample in seconds.
	FrameTime float64

	// HandleContact pins planted feet.
	HandleContact bool

	// UnlockRadius is how far a pinned foot may drift before it is released.
	UnlockRadius float64

	// ContactJoints are the joint indices of the left and right feet.
	ContactJoints [2]int
}

// Frame is one smoothed output frame.
type Frame struct {
	Frame int

	// Translation is the world root position.
	Translation r3.Vec

	// Translations and Rotations are the local joint transforms; the root
	// entries are in world space.
	Translations []r3.Vec
	Rotations    []quat.Number

	// Positions are the world joint positions of the smoothed pose, with
	// locked feet pinned.
	Positions bvh.Pose

	Contacts [2]bool

	// Locks reports which feet are pinned and LockPositions where.
	Locks         [2]bool
	LockPositions [2]r3.Vec

	Discontinuity bool
}

type footLock struct {
	locked bool
	pos    r3.Vec
}

// Manager blends the samples of one Source.
type Manager struct {
	clip   *bvh.Clip
	source Source
	opts   Options
	decay  float64

	translationOffsets []r3.Vec
	rotationOffsets    []quat.Number

	last      *Frame
	blendNext bool
	locks     [2]footLock
	blends    int
}

// New returns a manager pulling from source. clip supplies the skeleton used
// to evaluate output poses.
func New(clip *bvh.Clip, source Source, opts Options) *Manager {
	n := len(clip.Joints)
	m := &Manager{
		clip:               clip,
		source:             source,
		opts:               opts,
		translationOffsets: make([]r3.Vec, n),
		rotationOffsets:    make([]quat.Number, n),
	}
	if opts.HalfLife > 0 && opts.FrameTime > 0 {
		m.decay = math.Exp(-math.Ln2 * opts.FrameTime / opts.HalfLife)
	}
	m.clearOffsets()
	return m
}

// Next pulls one sample from the source and returns the smoothed frame.
func (m *Manager) Next() Frame {
	s := m.source()
	data := s.Data

	if m.blendNext && m.last != nil {
		m.capture(data)
		m.blends++
	} else {
		m.decayOffsets()
	}
	m.blendNext = s.Discontinuity

	local := bvh.Frame{
		Translations: make([]r3.Vec, len(data.Translations)),
		Rotations:    make([]quat.Number, len(data.Rotations)),
	}
	for j := range data.Translations {
		local.Translations[j] = r3.Add(data.Translations[j], m.translationOffsets[j])
		local.Rotations[j] = xform.Normalize(xform.Mul(m.rotationOffsets[j], data.Rotations[j]))
	}

	out := Frame{
		Frame:         s.Frame,
		Translation:   local.Translations[0],
		Translations:  local.Translations,
		Rotations:     local.Rotations,
		Positions:     m.clip.Forward(local),
		Contacts:      s.Contacts,
		Discontinuity: s.Discontinuity,
	}
	if m.opts.HandleContact {
		m.lockFeet(&out)
	}

	m.last = &out
	return out
}

// capture records the offsets that carry the new source frame onto the last
// emitted frame.
func (m *Manager) capture(data bvh.Frame) {
	if m.decay == 0 {
		m.clearOffsets()
		return
	}
	for j := range data.Translations {
		m.translationOffsets[j] = r3.Sub(m.last.Translations[j], data.Translations[j])
		m.rotationOffsets[j] = xform.Normalize(xform.Mul(m.last.Rotations[j], quat.Conj(data.Rotations[j])))
	}
}

func (m *Manager) decayOffsets() {
	for j := range m.translationOffsets {
		m.translationOffsets[j] = r3.Scale(m.decay, m.translationOffsets[j])
		m.rotationOffsets[j] = xform.ScaleRotation(m.rotationOffsets[j], m.decay)
	}
}

func (m *Manager) clearOffsets() {
	for j := range m.translationOffsets {
		m.translationOffsets[j] = r3.Vec{}
		m.rotationOffsets[j] = xform.Identity
	}
}

// lockFeet pins each planted foot where it touched down and releases it once
// the pose carries it beyond UnlockRadius.
func (m *Manager) lockFeet(out *Frame) {
	for i, j := range m.opts.ContactJoints {
		pos := out.Positions[j]
		lock := &m.locks[i]
		switch {
		case !out.Contacts[i]:
			lock.locked = false
		case !lock.locked:
			*lock = footLock{locked: true, pos: pos}
		case r3.Norm(r3.Sub(pos, lock.pos)) > m.opts.UnlockRadius:
			lock.locked = false
		}
		if lock.locked {
			out.Positions[j] = lock.pos
			out.LockPositions[i] = lock.pos
		}
		out.Locks[i] = lock.locked
	}
}

// Retarget swaps the source. The first frame from the new source is blended
// against the last emitted frame.
func (m *Manager) Retarget(source Source) {
	m.source = source
	m.blendNext = true
}

// Blends returns the number of discontinuities blended so far.
func (m *Manager) Blends() int {
	return m.blends
}

// Decay returns the per-frame offset retention factor.
func (m *Manager) Decay() float64 {
	return m.decay
}
