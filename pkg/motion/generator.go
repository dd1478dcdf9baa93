package motion

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// DefaultContactVelocityThreshold marks a foot planted below 20 units/s.
const DefaultContactVelocityThreshold = 20

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	StartPosition  r3.Vec
	StartDirection r3.Vec

	// ContactVelocityThreshold is the joint speed, in units per second,
	// below which a contact joint counts as planted.
	ContactVelocityThreshold float64

	// ContactJoints are the left and right foot joints.
	ContactJoints [2]string
}

// Generator produces one pose sample per call to Next.
type Generator struct {
	sel  *Selecter
	node Node

	cursor      int
	totalFrames int

	pose   bvh.Pose
	facing r3.Vec

	idle          bool
	idleReference bvh.Pose

	objective       r3.Vec
	objectiveMoving bool
	lastFoot        Foot
	lastRamp        float64

	contact   [2]int
	threshold float64

	logger *slog.Logger
}

// NewGenerator returns a generator idling at opts.StartPosition.
func NewGenerator(sel *Selecter, opts GeneratorOptions) (*Generator, error) {
	if opts.ContactVelocityThreshold <= 0 {
		opts.ContactVelocityThreshold = DefaultContactVelocityThreshold
	}
	if opts.ContactJoints == [2]string{} {
		opts.ContactJoints = [2]string{"LeftToe", "RightToe"}
	}

	skeleton := sel.Skeleton()
	var contact [2]int
	for i, name := range opts.ContactJoints {
		idx, err := skeleton.JointIndex(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoContactJoint, err)
		}
		contact[i] = idx
	}

	dir := xform.GroundDirection(opts.StartDirection, xform.Forward)
	node := sel.StartIdleNode(opts.StartPosition, dir)

	g := &Generator{
		sel:       sel,
		node:      node,
		cursor:    node.StartFrame,
		objective: dir,
		idle:      true,
		lastFoot:  node.Segment.EndStance,
		contact:   contact,
		threshold: opts.ContactVelocityThreshold,
		logger:    log.For("generator"),
	}
	data := g.alignedFrame(node.StartFrame, 0)
	g.pose = node.Clip.Forward(data)
	g.facing = g.facingOf(g.pose, data)
	g.idleReference = g.pose.Clone()
	return g, nil
}

// SetObjective stores the movement intent and switches the active mode. It
// takes effect at the next hand-off.
func (g *Generator) SetObjective(direction r3.Vec, moving bool, mode int) error {
	if err := g.sel.SetMode(mode); err != nil {
		return err
	}
	g.objective = direction
	g.objectiveMoving = moving
	return nil
}

// Next produces the next sample.
func (g *Generator) Next() Sample {
	// The last frame of a segment is a discontinuity.
	discontinuity := g.cursor == g.node.EndFrame

	if g.cursor > g.node.EndFrame {
		g.handOff()
	}
	if g.cursor < g.node.StartFrame || g.cursor > g.node.EndFrame || g.cursor >= g.node.Clip.FrameCount() {
		panic(fmt.Sprintf("motion: cursor %d outside node %s[%d:%d]",
			g.cursor, g.node.Clip.Name, g.node.StartFrame, g.node.EndFrame))
	}

	frame := g.cursor

	var contacts [2]bool
	for i, j := range g.contact {
		contacts[i] = g.node.Clip.JointSpeed(j, frame) < g.threshold
	}

	ramp := g.node.Ramp(frame)
	data := g.alignedFrame(frame, ramp)
	g.lastRamp = ramp

	g.pose = g.node.Clip.Forward(data)
	g.facing = g.facingOf(g.pose, data)

	switch {
	case !g.idle && !g.objectiveMoving:
		g.idle = true
		g.idleReference = g.pose.Clone()
		discontinuity = true
		g.forceSegmentEnd()
		g.logger.Debug("entering idle", "frame", g.totalFrames)
	case g.idle && g.objectiveMoving:
		g.idle = false
		discontinuity = true
		g.forceSegmentEnd()
		g.logger.Debug("leaving idle", "frame", g.totalFrames)
	}

	if !discontinuity {
		g.totalFrames++
	}
	g.cursor++

	return Sample{
		Frame:         g.totalFrames,
		ClipFrame:     frame,
		Data:          data,
		Contacts:      contacts,
		Discontinuity: discontinuity,
	}
}

// alignedFrame reads frame f of the current node, re-bases the root into
// world space and applies the drift correction scaled by ramp.
func (g *Generator) alignedFrame(f int, ramp float64) bvh.Frame {
	data, err := g.node.Clip.Frame(f)
	if err != nil {
		panic(fmt.Sprintf("motion: %v", err))
	}
	align := g.node.Alignment
	data.Translations[0] = r3.Add(
		align.Apply(data.Translations[0]),
		r3.Scale(ramp, g.node.RequiredTranslation),
	)
	data.Rotations[0] = xform.Mul(
		xform.QuatY(ramp*g.node.RequiredYRotation),
		align.ApplyRotation(data.Rotations[0]),
	)
	return data
}

func (g *Generator) facingOf(pose bvh.Pose, data bvh.Frame) r3.Vec {
	hips := g.sel.idle.facing
	across := xform.Ground(r3.Sub(pose[hips[FootLeft]], pose[hips[FootRight]]))
	if r3.Norm(across) < 1e-6 {
		return xform.Direction(data.Rotations[0])
	}
	return g.sel.Facing(pose)
}

// handOff replaces the exhausted node.
func (g *Generator) handOff() {
	prev := g.node
	if g.idle {
		g.node = g.sel.IdleNode(IdleQuery{
			Pose:      g.pose,
			Facing:    g.facing,
			Reference: g.idleReference,
		})
	} else {
		g.node, g.lastFoot = g.sel.NextNode(Query{
			Pose:      g.pose,
			Facing:    g.facing,
			Objective: g.objective,
			LastFoot:  g.lastFoot,
		})
	}
	g.cursor = g.node.StartFrame
	g.logger.Debug("hand-off",
		"from", prev.Segment,
		"to", g.node.Segment,
		"state", g.State(),
		"frame", g.totalFrames)
}

// forceSegmentEnd makes the next call hand off to a fresh node.
func (g *Generator) forceSegmentEnd() {
	g.cursor = g.node.EndFrame
}

// Pose returns the world joint positions of the last sample.
func (g *Generator) Pose() bvh.Pose {
	return g.pose
}

// Facing returns the ground direction of the last sample.
func (g *Generator) Facing() r3.Vec {
	return g.facing
}

// Idle reports whether the generator is idling.
func (g *Generator) Idle() bool {
	return g.idle
}

// State returns the locomotion state.
func (g *Generator) State() State {
	if g.idle {
		return StateIdle
	}
	return StateMoving
}

// TotalFrames returns the number of continuous frames produced.
func (g *Generator) TotalFrames() int {
	return g.totalFrames
}

// Node returns the current node.
func (g *Generator) Node() Node {
	return g.node
}

// Cursor returns the frame the next call will read, or EndFrame+1 when the
// node is exhausted.
func (g *Generator) Cursor() int {
	return g.cursor
}

// IdleReference returns the pose captured when idling last began.
func (g *Generator) IdleReference() bvh.Pose {
	return g.idleReference
}

// LastFoot returns the planted foot carried into the next selection.
func (g *Generator) LastFoot() Foot {
	return g.lastFoot
}

// Ramp returns the drift-correction scale applied to the last sample.
func (g *Generator) Ramp() float64 {
	return g.lastRamp
}

// Objective returns the latest movement intent.
func (g *Generator) Objective() (direction r3.Vec, moving bool) {
	return g.objective, g.objectiveMoving
}

// Selecter returns the selecter the generator draws from.
func (g *Generator) Selecter() *Selecter {
	return g.sel
}

// Clip returns the skeleton clip samples are expressed against.
func (g *Generator) Clip() *bvh.Clip {
	return g.sel.Skeleton()
}

// ContactJoints returns the joint indices used for contact flags.
func (g *Generator) ContactJoints() [2]int {
	return g.contact
}
