package motion

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// scoreEpsilon is the tolerance under which two candidate scores tie.
const scoreEpsilon = 1e-9

// SelecterOptions controls how far a selected segment may be bent.
type SelecterOptions struct {
	// RotationTolerance is the yaw correction allowed per segment, in degrees.
	RotationTolerance float64

	// TranslationTolerance is the ground drift correction allowed per segment.
	TranslationTolerance float64
}

// Selecter chooses the next segment to play. It owns one idle library and one
// library per motion mode, of which one is active.
type Selecter struct {
	idle  *Library
	modes []*Library
	mode  int

	rotationTolerance    float64
	translationTolerance float64

	logger *slog.Logger
}

// NewSelecter validates the libraries and returns a selecter with mode 0
// active. Every library must be non-empty and share one skeleton.
func NewSelecter(idle *Library, modes []*Library, opts SelecterOptions) (*Selecter, error) {
	if idle == nil || idle.Len() == 0 {
		return nil, fmt.Errorf("%w: no idle segments", ErrEmptyLibrary)
	}
	if len(modes) == 0 {
		return nil, fmt.Errorf("%w: no motion modes", ErrEmptyLibrary)
	}
	for i, lib := range modes {
		if lib == nil || lib.Len() == 0 {
			return nil, fmt.Errorf("%w: mode %d", ErrEmptyLibrary, i)
		}
		if !idle.Skeleton().SameSkeleton(lib.Skeleton()) {
			return nil, fmt.Errorf("%w: mode %d (%s) and idle (%s)", ErrSkeletonMismatch, i, lib.Name, idle.Name)
		}
	}

	return &Selecter{
		idle:                 idle,
		modes:                modes,
		rotationTolerance:    xform.Deg2Rad(opts.RotationTolerance),
		translationTolerance: opts.TranslationTolerance,
		logger:               log.For("selecter"),
	}, nil
}

// SetMode activates the library for mode.
func (s *Selecter) SetMode(mode int) error {
	if mode < 0 || mode >= len(s.modes) {
		return fmt.Errorf("%w: %d (have %d)", ErrUnknownMode, mode, len(s.modes))
	}
	if mode != s.mode {
		s.logger.Debug("mode switched", "from", s.modes[s.mode].Name, "to", s.modes[mode].Name)
		s.mode = mode
	}
	return nil
}

// Mode returns the active mode index.
func (s *Selecter) Mode() int {
	return s.mode
}

// Modes returns the number of motion modes.
func (s *Selecter) Modes() int {
	return len(s.modes)
}

// Library returns the library for mode.
func (s *Selecter) Library(mode int) *Library {
	return s.modes[mode]
}

// IdleLibrary returns the idle library.
func (s *Selecter) IdleLibrary() *Library {
	return s.idle
}

// Skeleton returns the clip whose joint layout every library shares.
func (s *Selecter) Skeleton() *bvh.Clip {
	return s.idle.Skeleton()
}

// Facing returns the ground direction pose faces.
func (s *Selecter) Facing(pose bvh.Pose) r3.Vec {
	return Facing(pose, s.idle.facing)
}

// StartIdleNode places the first idle segment at position facing direction,
// with no drift correction.
func (s *Selecter) StartIdleNode(position, direction r3.Vec) Node {
	seg := s.idle.Segments[0]
	dir := xform.GroundDirection(direction, xform.Forward)
	align := xform.Align(seg.startRoot, seg.startFacing, position, dir)
	return newNode(seg, align, r3.Vec{}, 0)
}

// IdleNode picks the idle segment whose start pose best matches q.Reference,
// places it on the current pose and asks for the drift that carries the
// character back onto the reference.
func (s *Selecter) IdleNode(q IdleQuery) Node {
	refFacing := s.Facing(q.Reference)
	ref := LocalPose(q.Reference, refFacing)

	best, bestDist := s.idle.Segments[0], math.Inf(1)
	for _, seg := range s.idle.Segments {
		d := poseDistance(seg.startLocal, ref)
		if d < bestDist-scoreEpsilon {
			best, bestDist = seg, d
		}
	}

	align := xform.Align(best.startRoot, best.startFacing, q.Pose.Root(), q.Facing)
	drift := xform.Ground(r3.Sub(q.Reference.Root(), q.Pose.Root()))
	node := newNode(best, align,
		xform.ClampVec(drift, s.translationTolerance),
		xform.Clamp(xform.SignedAngle(q.Facing, refFacing), s.rotationTolerance),
	)

	s.logger.Debug("idle segment selected", "segment", best, "distance", bestDist)
	return node
}

type candidate struct {
	seg      *Segment
	align    xform.Rigid
	match    bool
	steer    float64
	residual float64
	raw      float64
}

// less orders candidates: footedness match, then residual deviation after
// steering, then raw deviation, then authoring order.
func (c candidate) less(o candidate) bool {
	if c.match != o.match {
		return c.match
	}
	if d := c.residual - o.residual; math.Abs(d) > scoreEpsilon {
		return d < 0
	}
	if d := c.raw - o.raw; math.Abs(d) > scoreEpsilon {
		return d < 0
	}
	return c.seg.ID < o.seg.ID
}

// NextNode searches the active library for the segment whose travel, once
// placed on the current pose, best follows q.Objective. Segments starting on
// the foot opposite q.LastFoot win; when none exists the best segment on
// either foot is used. It returns the node and the foot planted when the
// node ends.
func (s *Selecter) NextNode(q Query) (Node, Foot) {
	objective := xform.GroundDirection(q.Objective, q.Facing)
	lib := s.modes[s.mode]

	var best candidate
	found := false
	for _, seg := range lib.Segments {
		align := xform.Align(seg.startRoot, seg.startFacing, q.Pose.Root(), q.Facing)
		dev := xform.SignedAngle(align.ApplyDirection(seg.Travel()), objective)
		steer := xform.Clamp(dev, s.rotationTolerance)
		c := candidate{
			seg:      seg,
			align:    align,
			match:    seg.Stance != q.LastFoot,
			steer:    steer,
			residual: math.Abs(dev - steer),
			raw:      math.Abs(dev),
		}
		if !found || c.less(best) {
			best, found = c, true
		}
	}

	if !best.match {
		s.logger.Debug("no segment continues footedness, ignoring it",
			"library", lib.Name, "last_foot", q.LastFoot)
	}
	s.logger.Debug("segment selected",
		"library", lib.Name,
		"segment", best.seg,
		"stance", best.seg.Stance,
		"end_stance", best.seg.EndStance,
		"steer_deg", xform.Rad2Deg(best.steer))

	return newNode(best.seg, best.align, r3.Vec{}, best.steer), best.seg.EndStance
}
