package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-locomotion/internal/motiontest"
	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

const (
	hipHeight   = motiontest.HipHeight
	hipSpread   = motiontest.HipSpread
	idleFrames  = motiontest.IdleFrames
	testMinSpan = 10
)

func walkClip(t *testing.T, name string, steps int, travel, bodyYaw float64) *bvh.Clip {
	t.Helper()
	return motiontest.Walk(t, name, steps, travel, bodyYaw)
}

func idleClip(t *testing.T, name string, n int) *bvh.Clip {
	t.Helper()
	return motiontest.Idle(t, name, n)
}

func stanceClip(t *testing.T, name string, n int, spread float64) *bvh.Clip {
	t.Helper()
	return motiontest.Stance(t, name, n, spread)
}

// placePose moves a clip-space pose into the world.
func placePose(pose bvh.Pose, r xform.Rigid) bvh.Pose {
	out := make(bvh.Pose, len(pose))
	for i, p := range pose {
		out[i] = r.Apply(p)
	}
	return out
}

func testLibraryOptions() LibraryOptions {
	return LibraryOptions{
		ContactJoints:    [2]string{"LeftToe", "RightToe"},
		FacingJoints:     [2]string{"LeftUpLeg", "RightUpLeg"},
		MinSegmentFrames: testMinSpan,
	}
}

func newTestLibrary(t *testing.T, name string, clips ...*bvh.Clip) *Library {
	t.Helper()
	lib, err := NewLibrary(name, clips, testLibraryOptions())
	require.NoError(t, err)
	return lib
}

func newTestIdleLibrary(t *testing.T, clips ...*bvh.Clip) *Library {
	t.Helper()
	lib, err := NewIdleLibrary("idle", clips, testLibraryOptions())
	require.NoError(t, err)
	return lib
}

// newTestSelecter returns a selecter with a walk mode and a strafe mode.
func newTestSelecter(t *testing.T, opts SelecterOptions) *Selecter {
	t.Helper()
	idle := newTestIdleLibrary(t, idleClip(t, "idle", idleFrames))
	walk := newTestLibrary(t, "walk", walkClip(t, "walk", 6, 0, 0))
	strafe := newTestLibrary(t, "strafe",
		walkClip(t, "strafe_right", 6, math.Pi/2, 0),
		walkClip(t, "strafe_left", 6, -math.Pi/2, 0),
	)
	sel, err := NewSelecter(idle, []*Library{walk, strafe}, opts)
	require.NoError(t, err)
	return sel
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	sel := newTestSelecter(t, SelecterOptions{RotationTolerance: 5, TranslationTolerance: 7})
	g, err := NewGenerator(sel, GeneratorOptions{
		StartDirection:           xform.Forward,
		ContactVelocityThreshold: 20,
		ContactJoints:            [2]string{"LeftToe", "RightToe"},
	})
	require.NoError(t, err)
	return g
}
