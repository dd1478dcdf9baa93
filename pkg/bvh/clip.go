package bvh

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// Clip is one loaded motion-capture recording.
type Clip struct {
	// Name is the file name without extension.
	Name string

	// Joints is the skeleton in hierarchy order.
	Joints []Joint

	// FrameTime is the duration of one frame in seconds.
	FrameTime float64

	frames    []Frame
	positions []Pose
	index     map[string]int
}

func newClip(name string, joints []Joint, frameTime float64, raw [][]float64) *Clip {
	c := &Clip{
		Name:      name,
		Joints:    joints,
		FrameTime: frameTime,
		frames:    make([]Frame, len(raw)),
		positions: make([]Pose, len(raw)),
		index:     make(map[string]int, len(joints)),
	}
	for i, j := range joints {
		if _, dup := c.index[j.Name]; !dup {
			c.index[j.Name] = i
		}
	}
	for f, values := range raw {
		c.frames[f] = c.decode(values)
		c.positions[f] = c.Forward(c.frames[f])
	}
	return c
}

// decode turns one line of channel values into local joint transforms.
func (c *Clip) decode(values []float64) Frame {
	frame := Frame{
		Translations: make([]r3.Vec, len(c.Joints)),
		Rotations:    make([]quat.Number, len(c.Joints)),
	}
	k := 0
	for i, j := range c.Joints {
		t := j.Offset
		var angles []float64
		var order []byte
		for _, ch := range j.Channels {
			v := values[k]
			k++
			switch ch {
			case XPosition:
				t.X += v
			case YPosition:
				t.Y += v
			case ZPosition:
				t.Z += v
			default:
				angles = append(angles, v)
				order = append(order, ch.axis())
			}
		}
		frame.Translations[i] = t
		frame.Rotations[i] = xform.EulerToQuat(angles, string(order))
	}
	return frame
}

// FrameCount returns the number of frames in the clip.
func (c *Clip) FrameCount() int {
	return len(c.frames)
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	return float64(len(c.frames)) * c.FrameTime
}

// Frame returns a copy of the local joint state at frame i.
func (c *Clip) Frame(i int) (Frame, error) {
	if i < 0 || i >= len(c.frames) {
		return Frame{}, fmt.Errorf("%w: frame %d of %q (%d frames)", ErrFrameRange, i, c.Name, len(c.frames))
	}
	return c.frames[i].Clone(), nil
}

// RootTranslation returns the clip-space root position at frame i.
func (c *Clip) RootTranslation(i int) r3.Vec {
	return c.frames[i].Translations[0]
}

// Rotations returns a copy of the local joint rotations at frame i.
func (c *Clip) Rotations(i int) []quat.Number {
	out := make([]quat.Number, len(c.frames[i].Rotations))
	copy(out, c.frames[i].Rotations)
	return out
}

// RootOffset returns the static offset of the root joint.
func (c *Clip) RootOffset() r3.Vec {
	return c.Joints[0].Offset
}

// JointIndex returns the index of the named joint.
func (c *Clip) JointIndex(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q in clip %q", ErrUnknownJoint, name, c.Name)
	}
	return i, nil
}

// JointNames returns the joint names in hierarchy order.
func (c *Clip) JointNames() []string {
	names := make([]string, len(c.Joints))
	for i, j := range c.Joints {
		names[i] = j.Name
	}
	return names
}

// SameSkeleton reports whether other has the same joints in the same order.
func (c *Clip) SameSkeleton(other *Clip) bool {
	if len(c.Joints) != len(other.Joints) {
		return false
	}
	for i := range c.Joints {
		if c.Joints[i].Name != other.Joints[i].Name || c.Joints[i].Parent != other.Joints[i].Parent {
			return false
		}
	}
	return true
}

// Positions returns the clip-space joint positions at frame i. The returned
// pose is shared and must not be modified.
func (c *Clip) Positions(i int) Pose {
	return c.positions[i]
}

// Forward evaluates forward kinematics for a frame of local transforms.
func (c *Clip) Forward(f Frame) Pose {
	pose := make(Pose, len(c.Joints))
	world := make([]quat.Number, len(c.Joints))
	for i, j := range c.Joints {
		if j.Parent < 0 {
			pose[i] = f.Translations[i]
			world[i] = f.Rotations[i]
			continue
		}
		p := j.Parent
		pose[i] = r3.Add(pose[p], xform.Rotate(world[p], f.Translations[i]))
		world[i] = xform.Mul(world[p], f.Rotations[i])
	}
	return pose
}

// JointSpeed returns the speed of joint j at frame i in units per second,
// measured toward the next frame. The last frame looks back instead.
func (c *Clip) JointSpeed(j, i int) float64 {
	n := len(c.positions)
	if n < 2 {
		return 0
	}
	a, b := i, i+1
	if b >= n {
		a, b = n-2, n-1
	}
	return r3.Norm(r3.Sub(c.positions[b][j], c.positions[a][j])) / c.FrameTime
}

// LoadFile reads a single BVH file.
func LoadFile(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open clip: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, f)
}

// LoadDir reads every .bvh file in dir, sorted by file name.
func LoadDir(dir string) ([]*Clip, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.bvh"))
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoClips, dir)
	}
	sort.Strings(files)

	clips := make([]*Clip, 0, len(files))
	for _, file := range files {
		clip, err := LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		clips = append(clips, clip)
	}

	log.Info("loaded motion clips", "dir", dir, "clips", len(clips))
	return clips, nil
}
