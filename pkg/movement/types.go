// Package movement drives one character's locomotion through a single
// control loop.
//
// The Manager owns the motion generator and the inertialization stage. Each
// tick it applies the latest objective, pulls one smoothed frame and hands it
// to a Publisher. Objectives and library reloads may arrive from any
// goroutine; they are parked in pending slots and only applied on the loop
// goroutine, so the engine itself is never touched concurrently.
package movement

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/pkg/inertialize"
	"github.com/teslashibe/go-locomotion/pkg/motion"
)

// Objective is a movement intent.
type Objective struct {
	// Direction is the desired travel direction on the ground plane.
	Direction r3.Vec

	// Moving is false when the character should idle.
	Moving bool

	// Mode selects the motion library.
	Mode int
}

// Update is published once per tick.
type Update struct {
	Frame  inertialize.Frame
	State  motion.State
	Mode   int
	Facing r3.Vec
}

// Publisher receives every frame the manager produces.
type Publisher interface {
	Publish(Update) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Update) error

// Publish calls f.
func (f PublisherFunc) Publish(u Update) error {
	return f(u)
}

// Options configures a Manager.
type Options struct {
	// Rate is the tick interval. Zero uses the clip frame time.
	Rate time.Duration

	HalfLife      float64
	HandleContact bool
	UnlockRadius  float64

	// Generator options are reused when a reload rebuilds the generator.
	Generator motion.GeneratorOptions
}

// Stats reports the state of the control loop.
type Stats struct {
	Running         bool          `json:"running"`
	Rate            time.Duration `json:"rate"`
	Ticks           uint64        `json:"ticks"`
	Frame           int           `json:"frame"`
	Discontinuities uint64        `json:"discontinuities"`
	Blends          int           `json:"blends"`
	Reloads         uint64        `json:"reloads"`
	PublishErrors   uint64        `json:"publish_errors"`
	State           string        `json:"state"`
	Mode            int           `json:"mode"`
	Position        [3]float64    `json:"position"`
	Facing          [3]float64    `json:"facing"`
	Objective       [3]float64    `json:"objective"`
	Moving          bool          `json:"moving"`
}
