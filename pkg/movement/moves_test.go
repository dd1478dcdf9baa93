package movement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestObjectiveToward(t *testing.T) {
	target := r3.Vec{X: 30, Y: 50, Z: 40}

	tests := []struct {
		name      string
		position  r3.Vec
		control   bool
		wasMoving bool
		want      bool
	}{
		{"stopped without control stays", r3.Vec{}, false, false, false},
		{"control starts", r3.Vec{}, true, false, true},
		{"moving keeps going while far", r3.Vec{}, false, true, true},
		{"moving stops inside radius", r3.Vec{X: 29, Z: 39}, false, true, false},
		{"control overrides arrival", r3.Vec{X: 29, Z: 39}, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, moving := ObjectiveToward(tt.position, target, tt.control, tt.wasMoving, 5)
			assert.Equal(t, tt.want, moving)
			assert.Zero(t, dir.Y, "direction stays on the ground")
		})
	}

	dir, _ := ObjectiveToward(r3.Vec{}, target, true, false, 5)
	assert.Equal(t, r3.Vec{X: 30, Z: 40}, dir)
}

func TestFollowLatchesMovement(t *testing.T) {
	f := NewFollow(r3.Vec{Z: 100}, true, 10, 1)
	assert.Equal(t, "follow", f.Name())

	obj := f.Objective(0, r3.Vec{}, r3.Vec{Z: 1})
	assert.True(t, obj.Moving)
	assert.Equal(t, 1, obj.Mode)

	f.Control = false
	assert.True(t, f.Objective(0, r3.Vec{Z: 50}, r3.Vec{Z: 1}).Moving, "still far from the target")
	assert.False(t, f.Objective(0, r3.Vec{Z: 95}, r3.Vec{Z: 1}).Moving)
	assert.False(t, f.Objective(0, r3.Vec{Z: 50}, r3.Vec{Z: 1}).Moving, "a stopped follower waits for control")

	f.Moving = true
	assert.True(t, f.Objective(0, r3.Vec{Z: 50}, r3.Vec{Z: 1}).Moving, "a latched follower walks without control")
}

func TestScriptWaypoints(t *testing.T) {
	walk := Objective{Direction: r3.Vec{Z: 1}, Moving: true}
	turn := Objective{Direction: r3.Vec{X: 1}, Moving: true, Mode: 1}
	stop := Objective{Direction: r3.Vec{X: 1}}

	s := NewScript("square",
		Waypoint{At: time.Second, Objective: walk},
		Waypoint{At: 3 * time.Second, Objective: turn},
		Waypoint{At: 5 * time.Second, Objective: stop},
	)
	assert.Equal(t, "square", s.Name())
	assert.Equal(t, 5*time.Second, s.Duration())

	facing := r3.Vec{X: -1}
	tests := []struct {
		elapsed time.Duration
		want    Objective
	}{
		{0, Objective{Direction: facing}},
		{time.Second, walk},
		{2 * time.Second, walk},
		{3 * time.Second, turn},
		{time.Minute, stop},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Objective(tt.elapsed, r3.Vec{}, facing), "at %v", tt.elapsed)
	}

	assert.Zero(t, NewScript("empty").Duration())
}
