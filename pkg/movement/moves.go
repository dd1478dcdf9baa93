package movement

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// Steering produces an objective each tick from the character's ground
// position and facing. It is consulted on the loop goroutine only.
type Steering interface {
	// Name identifies the steering source in logs.
	Name() string

	// Objective returns the intent for the next tick. elapsed is the time
	// since the steering was installed.
	Objective(elapsed time.Duration, position, facing r3.Vec) Objective
}

// ObjectiveToward steers toward target. A character that is already moving
// keeps going until it is within radius of the target; a stopped character
// only starts when control asks it to.
func ObjectiveToward(position, target r3.Vec, control, wasMoving bool, radius float64) (r3.Vec, bool) {
	dir := xform.Ground(r3.Sub(target, position))
	moving := control
	if wasMoving {
		moving = control || r3.Norm(dir) > radius
	}
	return dir, moving
}

// Follow walks after a target point.
type Follow struct {
	Target  r3.Vec
	Control bool
	Radius  float64
	Mode    int

	// Moving is the latched state. Setting it starts a follower that then
	// stops on its own once within Radius.
	Moving bool
}

// NewFollow returns a steering that follows target within radius.
func NewFollow(target r3.Vec, control bool, radius float64, mode int) *Follow {
	return &Follow{Target: target, Control: control, Radius: radius, Mode: mode}
}

// Name returns "follow".
func (f *Follow) Name() string {
	return "follow"
}

// Objective catches up with the target.
func (f *Follow) Objective(_ time.Duration, position, _ r3.Vec) Objective {
	dir, moving := ObjectiveToward(position, f.Target, f.Control, f.Moving, f.Radius)
	f.Moving = moving
	return Objective{Direction: dir, Moving: moving, Mode: f.Mode}
}

// Waypoint is one timed step of a Script.
type Waypoint struct {
	At        time.Duration
	Objective Objective
}

// Script replays timed objectives. Waypoints must be sorted by At; the last
// one holds once reached.
type Script struct {
	name      string
	waypoints []Waypoint
}

// NewScript returns a scripted steering.
func NewScript(name string, waypoints ...Waypoint) *Script {
	return &Script{name: name, waypoints: waypoints}
}

// Name returns the script name.
func (s *Script) Name() string {
	return s.name
}

// Duration returns the time of the last waypoint.
func (s *Script) Duration() time.Duration {
	if len(s.waypoints) == 0 {
		return 0
	}
	return s.waypoints[len(s.waypoints)-1].At
}

// Objective returns the latest waypoint reached by elapsed. Before the first
// waypoint the character idles facing where it already faces.
func (s *Script) Objective(elapsed time.Duration, _, facing r3.Vec) Objective {
	current := Objective{Direction: facing}
	for _, wp := range s.waypoints {
		if wp.At > elapsed {
			break
		}
		current = wp.Objective
	}
	return current
}
