package web

import (
	"github.com/teslashibe/go-locomotion/pkg/motion"
	"github.com/teslashibe/go-locomotion/pkg/movement"
	"github.com/teslashibe/go-locomotion/pkg/protocol"
)

// ClipInfo describes one loaded clip.
type ClipInfo struct {
	Name     string  `json:"name"`
	Frames   int     `json:"frames"`
	Duration float64 `json:"duration"`
}

// LibraryInfo describes one segment library.
type LibraryInfo struct {
	Name     string     `json:"name"`
	Mode     int        `json:"mode"` // -1 for idle
	Segments int        `json:"segments"`
	Clips    []ClipInfo `json:"clips"`
}

// DescribeLibraries lists the idle library followed by every mode.
func DescribeLibraries(sel *motion.Selecter) []LibraryInfo {
	if sel == nil {
		return nil
	}
	out := []LibraryInfo{describe(sel.IdleLibrary(), -1)}
	for mode := range sel.Modes() {
		out = append(out, describe(sel.Library(mode), mode))
	}
	return out
}

func describe(lib *motion.Library, mode int) LibraryInfo {
	info := LibraryInfo{Name: lib.Name, Mode: mode, Segments: lib.Len()}
	for _, clip := range lib.Clips() {
		info.Clips = append(info.Clips, ClipInfo{
			Name:     clip.Name,
			Frames:   clip.FrameCount(),
			Duration: clip.Duration(),
		})
	}
	return info
}

// WireFrame converts a movement update to its wire form.
func WireFrame(u movement.Update) protocol.FrameData {
	f := u.Frame
	out := protocol.FrameData{
		Frame:         f.Frame,
		Root:          protocol.Vec3(f.Translation),
		Rotations:     make([][4]float64, len(f.Rotations)),
		Positions:     make([][3]float64, len(f.Positions)),
		Contacts:      f.Contacts,
		Locks:         f.Locks,
		Discontinuity: f.Discontinuity,
		Idle:          u.State == motion.StateIdle,
		Mode:          u.Mode,
		Facing:        protocol.Vec3(u.Facing),
	}
	for i, q := range f.Rotations {
		out.Rotations[i] = protocol.Quat4(q)
	}
	for i, p := range f.Positions {
		out.Positions[i] = protocol.Vec3(p)
	}
	return out
}
