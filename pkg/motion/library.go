package motion

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// DefaultMinSegmentFrames is used when LibraryOptions leaves it unset.
const DefaultMinSegmentFrames = 10

// Segment is an authored span of one clip.
type Segment struct {
	// ID is the segment's position in authoring order across its library.
	ID int

	Clip       *bvh.Clip
	StartFrame int
	EndFrame   int

	// Stance is the foot planted at StartFrame.
	Stance Foot

	// EndStance is the foot planted at EndFrame. It differs from Stance when
	// a short span was merged into the segment.
	EndStance Foot

	startRoot   r3.Vec
	endRoot     r3.Vec
	startFacing r3.Vec
	endFacing   r3.Vec
	startLocal  bvh.Pose
}

// Len returns the number of frames in the segment.
func (s *Segment) Len() int {
	return s.EndFrame - s.StartFrame + 1
}

// StartRoot returns the clip-space root position at StartFrame.
func (s *Segment) StartRoot() r3.Vec {
	return s.startRoot
}

// StartFacing returns the clip-space ground facing at StartFrame.
func (s *Segment) StartFacing() r3.Vec {
	return s.startFacing
}

// Travel returns the clip-space ground direction the segment moves in. A
// segment that stays in place travels along its end facing.
func (s *Segment) Travel() r3.Vec {
	return xform.GroundDirection(r3.Sub(s.endRoot, s.startRoot), s.endFacing)
}

// String identifies the segment in logs.
func (s *Segment) String() string {
	return fmt.Sprintf("%s[%d:%d]", s.Clip.Name, s.StartFrame, s.EndFrame)
}

// LibraryOptions controls segment authoring.
type LibraryOptions struct {
	// ContactJoints are the left and right foot joints.
	ContactJoints [2]string

	// FacingJoints are the left and right hip joints used to derive facing.
	FacingJoints [2]string

	// MinSegmentFrames is the shortest span kept as its own segment.
	MinSegmentFrames int

	// WindowFrames cuts idle clips into fixed windows. Zero keeps whole clips.
	WindowFrames int
}

// Library is a searchable set of segments of one motion category.
type Library struct {
	Name     string
	Segments []*Segment

	clips   []*bvh.Clip
	contact [2]int
	facing  [2]int
}

// NewLibrary authors a locomotion library. Clips are cut wherever the
// planted foot changes.
func NewLibrary(name string, clips []*bvh.Clip, opts LibraryOptions) (*Library, error) {
	lib, err := newLibrary(name, clips, opts)
	if err != nil {
		return nil, err
	}
	minLen := opts.MinSegmentFrames
	if minLen <= 0 {
		minLen = DefaultMinSegmentFrames
	}
	for _, clip := range lib.clips {
		lib.addSpans(clip, lib.contactSpans(clip, minLen))
	}
	return lib.finish()
}

// NewIdleLibrary authors an idle library. Clips are cut into windows of
// opts.WindowFrames, or kept whole.
func NewIdleLibrary(name string, clips []*bvh.Clip, opts LibraryOptions) (*Library, error) {
	lib, err := newLibrary(name, clips, opts)
	if err != nil {
		return nil, err
	}
	for _, clip := range lib.clips {
		lib.addSpans(clip, windowSpans(clip.FrameCount(), opts.WindowFrames))
	}
	return lib.finish()
}

func newLibrary(name string, clips []*bvh.Clip, opts LibraryOptions) (*Library, error) {
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: %s has no clips", ErrEmptyLibrary, name)
	}

	sorted := make([]*bvh.Clip, len(clips))
	copy(sorted, clips)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	lib := &Library{Name: name, clips: sorted}
	ref := sorted[0]
	for i := range 2 {
		c, err := ref.JointIndex(opts.ContactJoints[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoContactJoint, err)
		}
		f, err := ref.JointIndex(opts.FacingJoints[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoContactJoint, err)
		}
		lib.contact[i], lib.facing[i] = c, f
	}
	for _, clip := range sorted[1:] {
		if !ref.SameSkeleton(clip) {
			return nil, fmt.Errorf("%w: %q and %q in %s", ErrSkeletonMismatch, ref.Name, clip.Name, name)
		}
	}
	return lib, nil
}

func (l *Library) finish() (*Library, error) {
	if len(l.Segments) == 0 {
		return nil, fmt.Errorf("%w: %s has no playable segments", ErrEmptyLibrary, l.Name)
	}
	log.Info("authored motion library", "library", l.Name, "clips", len(l.clips), "segments", len(l.Segments))
	return l, nil
}

type span struct{ start, end int }

// contactSpans cuts a clip where the planted foot changes and merges spans
// shorter than minLen into their neighbour.
func (l *Library) contactSpans(clip *bvh.Clip, minLen int) []span {
	n := clip.FrameCount()
	if n < 2 {
		return nil
	}

	var spans []span
	start := 0
	prev := l.plantedFoot(clip, 0)
	for f := 1; f < n; f++ {
		foot := l.plantedFoot(clip, f)
		if foot != prev {
			spans = append(spans, span{start, f - 1})
			start, prev = f, foot
		}
	}
	spans = append(spans, span{start, n - 1})

	merged := spans[:0]
	for _, s := range spans {
		switch {
		case len(merged) > 0 && s.end-s.start+1 < minLen:
			merged[len(merged)-1].end = s.end
		case len(merged) == 1 && merged[0].end-merged[0].start+1 < minLen:
			merged[0].end = s.end
		default:
			merged = append(merged, s)
		}
	}
	return merged
}

// windowSpans cuts n frames into windows of size frames. A trailing window
// too short to ramp over joins the one before it.
func windowSpans(n, size int) []span {
	if n < 2 {
		return nil
	}
	if size <= 0 || size >= n {
		return []span{{0, n - 1}}
	}
	var spans []span
	for start := 0; start < n; start += size {
		end := min(start+size-1, n-1)
		if end-start+1 < 2 {
			spans[len(spans)-1].end = end
			break
		}
		spans = append(spans, span{start, end})
	}
	return spans
}

func (l *Library) addSpans(clip *bvh.Clip, spans []span) {
	for _, s := range spans {
		start, end := clip.Positions(s.start), clip.Positions(s.end)
		startFacing := Facing(start, l.facing)
		l.Segments = append(l.Segments, &Segment{
			ID:          len(l.Segments),
			Clip:        clip,
			StartFrame:  s.start,
			EndFrame:    s.end,
			Stance:      l.plantedFoot(clip, s.start),
			EndStance:   l.plantedFoot(clip, s.end),
			startRoot:   xform.Ground(start.Root()),
			endRoot:     xform.Ground(end.Root()),
			startFacing: startFacing,
			endFacing:   Facing(end, l.facing),
			startLocal:  LocalPose(start, startFacing),
		})
	}
}

// plantedFoot returns the contact joint moving slower at frame f. Ties go to
// the left foot.
func (l *Library) plantedFoot(clip *bvh.Clip, f int) Foot {
	if clip.JointSpeed(l.contact[FootRight], f) < clip.JointSpeed(l.contact[FootLeft], f) {
		return FootRight
	}
	return FootLeft
}

// Len returns the number of segments.
func (l *Library) Len() int {
	return len(l.Segments)
}

// Clips returns the library's clips in authoring order.
func (l *Library) Clips() []*bvh.Clip {
	return l.clips
}

// Skeleton returns the clip every other clip in the library matches.
func (l *Library) Skeleton() *bvh.Clip {
	return l.clips[0]
}

// Facing returns the ground direction a pose faces, derived from the left and
// right hip joints. Degenerate poses face xform.Forward.
func Facing(pose bvh.Pose, hips [2]int) r3.Vec {
	across := r3.Sub(pose[hips[FootLeft]], pose[hips[FootRight]])
	return xform.GroundDirection(r3.Cross(across, xform.Up), xform.Forward)
}

// LocalPose expresses pose relative to its root's ground point, turned so
// facing points along xform.Forward.
func LocalPose(pose bvh.Pose, facing r3.Vec) bvh.Pose {
	origin := xform.Ground(pose.Root())
	yaw := xform.SignedAngle(facing, xform.Forward)
	out := make(bvh.Pose, len(pose))
	for i, p := range pose {
		out[i] = xform.RotateY(r3.Sub(p, origin), yaw)
	}
	return out
}

func poseDistance(a, b bvh.Pose) float64 {
	var d float64
	for i := range a {
		diff := r3.Sub(a[i], b[i])
		d += r3.Dot(diff, diff)
	}
	return d
}
