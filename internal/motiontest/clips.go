// Package motiontest builds small synthetic BVH clips for tests.
//
// Every clip shares one skeleton: a Hips root with a position and yaw
// channel, two UpLeg joints spread sideways and a Toe under each, whose
// position channels place the foot directly. Walking clips alternate a
// planted foot every StepFrames frames, starting with the left.
package motiontest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

const (
	StepFrames = 12
	StepSpeed  = 2.0 // units per frame
	HipHeight  = 90.0
	HipSpread  = 10.0
	LegLength  = 90.0
	StepLift   = 5.0
	FPS        = 30.0
	IdleFrames = 40
)

// Joint indices of the synthetic skeleton.
const (
	Hips = iota
	LeftUpLeg
	LeftToe
	RightUpLeg
	RightToe
)

const skeleton = `HIERARCHY
ROOT Hips
{
	OFFSET 0 0 0
	CHANNELS 4 Xposition Yposition Zposition Yrotation
	JOINT LeftUpLeg
	{
		OFFSET 10 0 0
		CHANNELS 3 Zrotation Xrotation Yrotation
		JOINT LeftToe
		{
			OFFSET 0 -90 0
			CHANNELS 3 Xposition Yposition Zposition
			End Site
			{
				OFFSET 0 0 5
			}
		}
	}
	JOINT RightUpLeg
	{
		OFFSET -10 0 0
		CHANNELS 3 Zrotation Xrotation Yrotation
		JOINT RightToe
		{
			OFFSET 0 -90 0
			CHANNELS 3 Xposition Yposition Zposition
			End Site
			{
				OFFSET 0 0 5
			}
		}
	}
}
`

type frame struct {
	root r3.Vec
	yaw  float64 // radians
	toes [2]r3.Vec
}

// Render writes frames as a BVH document.
func render(frames []frame) string {
	var b strings.Builder
	b.WriteString(skeleton)
	fmt.Fprintf(&b, "MOTION\nFrames: %d\nFrame Time: %.10f\n", len(frames), 1/FPS)
	for _, f := range frames {
		fmt.Fprintf(&b, "%g %g %g %g", f.root.X, f.root.Y, f.root.Z, xform.Rad2Deg(f.yaw))
		for i, side := range [2]float64{HipSpread, -HipSpread} {
			hip := r3.Add(f.root, xform.RotateY(r3.Vec{X: side}, f.yaw))
			local := xform.RotateY(r3.Sub(f.toes[i], hip), -f.yaw)
			ch := r3.Sub(local, r3.Vec{Y: -LegLength})
			fmt.Fprintf(&b, "  0 0 0  %g %g %g", ch.X, ch.Y, ch.Z)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func walkFrames(steps int, travel, bodyYaw float64) []frame {
	lengths := make([]int, steps)
	for i := range lengths {
		lengths[i] = StepFrames
	}
	return stepFrames(lengths, travel, bodyYaw)
}

// stepFrames walks one step per entry of lengths, each lasting that many
// frames. Steps before and after the clip are assumed to last StepFrames.
func stepFrames(lengths []int, travel, bodyYaw float64) []frame {
	dir := xform.RotateY(xform.Forward, travel)
	lateral := [2]r3.Vec{
		xform.RotateY(r3.Vec{X: HipSpread}, bodyYaw),
		xform.RotateY(r3.Vec{X: -HipSpread}, bodyYaw),
	}

	starts := make([]int, len(lengths)+1)
	for k, n := range lengths {
		starts[k+1] = starts[k] + n
	}
	total := starts[len(lengths)]
	middle := func(k int) float64 {
		switch {
		case k < 0:
			return float64(k*StepFrames) + StepFrames/2.0
		case k >= len(lengths):
			return float64(total+(k-len(lengths))*StepFrames) + StepFrames/2.0
		}
		return float64(starts[k]) + float64(lengths[k])/2
	}
	plant := func(k, foot int) r3.Vec {
		return r3.Add(r3.Scale(StepSpeed*middle(k), dir), lateral[foot])
	}

	frames := make([]frame, 0, total)
	for k, n := range lengths {
		stance := k % 2
		swing := 1 - stance
		from, to := plant(k-1, swing), plant(k+1, swing)
		for i := range n {
			alpha := float64(i) / float64(n)

			var toes [2]r3.Vec
			toes[stance] = plant(k, stance)
			lift := r3.Vec{Y: StepLift * math.Sin(math.Pi*alpha)}
			toes[swing] = r3.Add(r3.Add(from, r3.Scale(alpha, r3.Sub(to, from))), lift)

			frames = append(frames, frame{
				root: r3.Add(r3.Vec{Y: HipHeight}, r3.Scale(StepSpeed*float64(starts[k]+i), dir)),
				yaw:  bodyYaw,
				toes: toes,
			})
		}
	}
	return frames
}

func stanceFrames(n int, spread float64) []frame {
	frames := make([]frame, n)
	for f := range frames {
		frames[f] = frame{
			root: r3.Vec{Y: HipHeight},
			toes: [2]r3.Vec{{X: spread}, {X: -spread}},
		}
	}
	return frames
}

func parse(tb testing.TB, name, doc string) *bvh.Clip {
	tb.Helper()
	clip, err := bvh.Parse(name, strings.NewReader(doc))
	require.NoError(tb, err)
	return clip
}

// WalkBVH returns a walking clip document of steps steps travelling along
// travel (radians) while the body faces bodyYaw.
func WalkBVH(steps int, travel, bodyYaw float64) string {
	return render(walkFrames(steps, travel, bodyYaw))
}

// StepsBVH returns a walking clip document whose steps last lengths[k]
// frames each, alternating from the left foot.
func StepsBVH(lengths []int, travel float64) string {
	return render(stepFrames(lengths, travel, 0))
}

// IdleBVH returns a clip document standing still for n frames.
func IdleBVH(n int) string {
	return render(stanceFrames(n, HipSpread))
}

// Walk parses a walking clip.
func Walk(tb testing.TB, name string, steps int, travel, bodyYaw float64) *bvh.Clip {
	tb.Helper()
	return parse(tb, name, WalkBVH(steps, travel, bodyYaw))
}

// Steps parses a walking clip with uneven step lengths.
func Steps(tb testing.TB, name string, lengths []int, travel float64) *bvh.Clip {
	tb.Helper()
	return parse(tb, name, StepsBVH(lengths, travel))
}

// Idle parses a clip standing still with both feet planted.
func Idle(tb testing.TB, name string, n int) *bvh.Clip {
	tb.Helper()
	return Stance(tb, name, n, HipSpread)
}

// Stance parses a standing clip with the toes spread sideways by spread.
func Stance(tb testing.TB, name string, n int, spread float64) *bvh.Clip {
	tb.Helper()
	return parse(tb, name, render(stanceFrames(n, spread)))
}

// WriteLibraries writes a walk folder, a strafe folder and an idle folder
// under dir and returns their paths.
func WriteLibraries(tb testing.TB, dir string) (walk, strafe, idle string) {
	tb.Helper()
	walk = filepath.Join(dir, "walk")
	strafe = filepath.Join(dir, "strafe")
	idle = filepath.Join(dir, "idle")

	files := map[string]string{
		filepath.Join(walk, "walk.bvh"):           WalkBVH(6, 0, 0),
		filepath.Join(strafe, "strafe_left.bvh"):  WalkBVH(6, -math.Pi/2, 0),
		filepath.Join(strafe, "strafe_right.bvh"): WalkBVH(6, math.Pi/2, 0),
		filepath.Join(idle, "idle.bvh"):           IdleBVH(IdleFrames),
	}
	for path, doc := range files {
		require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(tb, os.WriteFile(path, []byte(doc), 0o644))
	}
	return walk, strafe, idle
}
