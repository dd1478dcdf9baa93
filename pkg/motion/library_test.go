package motion

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/motiontest"
	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

type segmentSummary struct {
	Clip       string
	Start, End int
	Stance     Foot
	EndStance  Foot
}

func summarize(lib *Library) []segmentSummary {
	out := make([]segmentSummary, len(lib.Segments))
	for i, s := range lib.Segments {
		out[i] = segmentSummary{s.Clip.Name, s.StartFrame, s.EndFrame, s.Stance, s.EndStance}
	}
	return out
}

func TestNewLibraryCutsAtContactChanges(t *testing.T) {
	lib := newTestLibrary(t, "walk", walkClip(t, "walk", 4, 0, 0))

	want := []segmentSummary{
		{"walk", 0, 11, FootLeft, FootLeft},
		{"walk", 12, 23, FootRight, FootRight},
		{"walk", 24, 35, FootLeft, FootLeft},
		{"walk", 36, 47, FootRight, FootRight},
	}
	if diff := cmp.Diff(want, summarize(lib)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	for i, s := range lib.Segments {
		assert.Equal(t, i, s.ID)
	}
}

func TestNewLibraryMergesShortSpans(t *testing.T) {
	opts := testLibraryOptions()
	opts.MinSegmentFrames = 20

	lib, err := NewLibrary("walk", []*bvh.Clip{walkClip(t, "walk", 4, 0, 0)}, opts)
	require.NoError(t, err)

	want := []segmentSummary{
		{"walk", 0, 47, FootLeft, FootRight},
	}
	if diff := cmp.Diff(want, summarize(lib)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestNewLibraryRecordsEndStanceOfMergedSpans(t *testing.T) {
	lib := newTestLibrary(t, "walk", motiontest.Steps(t, "walk", []int{12, 4, 12, 12, 12}, 0))

	want := []segmentSummary{
		{"walk", 0, 15, FootLeft, FootRight},
		{"walk", 16, 27, FootLeft, FootLeft},
		{"walk", 28, 39, FootRight, FootRight},
		{"walk", 40, 51, FootLeft, FootLeft},
	}
	if diff := cmp.Diff(want, summarize(lib)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestNewLibraryOrdersClipsByName(t *testing.T) {
	lib := newTestLibrary(t, "mixed",
		walkClip(t, "b_walk", 2, 0, 0),
		walkClip(t, "a_walk", 2, 0, 0),
	)

	require.Equal(t, 4, lib.Len())
	assert.Equal(t, "a_walk", lib.Segments[0].Clip.Name)
	assert.Equal(t, "a_walk", lib.Segments[1].Clip.Name)
	assert.Equal(t, "b_walk", lib.Segments[2].Clip.Name)
	assert.Equal(t, "a_walk", lib.Skeleton().Name)
}

func TestNewIdleLibraryWindows(t *testing.T) {
	clip := idleClip(t, "idle", 21)

	whole := newTestIdleLibrary(t, clip)
	require.Equal(t, 1, whole.Len())
	assert.Equal(t, 20, whole.Segments[0].EndFrame)
	assert.Equal(t, FootLeft, whole.Segments[0].Stance, "ties go to the left foot")

	opts := testLibraryOptions()
	opts.WindowFrames = 10
	windowed, err := NewIdleLibrary("idle", []*bvh.Clip{clip}, opts)
	require.NoError(t, err)

	want := []segmentSummary{
		{"idle", 0, 9, FootLeft, FootLeft},
		{"idle", 10, 20, FootLeft, FootLeft},
	}
	if diff := cmp.Diff(want, summarize(windowed)); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentGeometry(t *testing.T) {
	lib := newTestLibrary(t, "strafe", walkClip(t, "strafe", 2, math.Pi/2, 0))
	seg := lib.Segments[0]

	assertVec(t, r3.Vec{}, seg.StartRoot())
	assertVec(t, xform.Forward, seg.StartFacing())
	assertVec(t, r3.Vec{X: 1}, seg.Travel())
	assert.Equal(t, "strafe[0:11]", seg.String())
	assert.Equal(t, 12, seg.Len())
}

func TestNewLibraryErrors(t *testing.T) {
	walk := walkClip(t, "walk", 2, 0, 0)

	_, err := NewLibrary("empty", nil, testLibraryOptions())
	assert.ErrorIs(t, err, ErrEmptyLibrary)

	_, err = NewIdleLibrary("single", []*bvh.Clip{idleClip(t, "single", 1)}, testLibraryOptions())
	assert.ErrorIs(t, err, ErrEmptyLibrary, "a one-frame clip cannot be played")

	opts := testLibraryOptions()
	opts.ContactJoints[1] = "RightFoot"
	_, err = NewLibrary("walk", []*bvh.Clip{walk}, opts)
	assert.ErrorIs(t, err, ErrNoContactJoint)
	assert.ErrorIs(t, err, bvh.ErrUnknownJoint)

	opts = testLibraryOptions()
	opts.FacingJoints[0] = "Spine"
	_, err = NewLibrary("walk", []*bvh.Clip{walk}, opts)
	assert.ErrorIs(t, err, ErrNoContactJoint)
}

func TestFacingAndLocalPose(t *testing.T) {
	hips := [2]int{1, 3}
	pose := bvh.Pose{
		{X: 5, Y: 90, Z: 5},
		{X: 5, Y: 90, Z: 15},
		{X: 5, Y: 0, Z: 15},
		{X: 5, Y: 90, Z: -5},
		{X: 5, Y: 0, Z: -5},
	}

	facing := Facing(pose, hips)
	assertVec(t, r3.Vec{X: -1}, facing)

	local := LocalPose(pose, facing)
	assertVec(t, r3.Vec{Y: 90}, local[0])
	assertVec(t, r3.Vec{X: 10, Y: 90}, local[1])
	assertVec(t, r3.Vec{X: -10}, local[4])

	assertVec(t, xform.Forward, Facing(make(bvh.Pose, 5), hips))
}

func assertVec(t *testing.T, want, got r3.Vec) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-6, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-6, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-6, "z")
}
