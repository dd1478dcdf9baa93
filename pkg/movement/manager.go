package movement

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/inertialize"
	"github.com/teslashibe/go-locomotion/pkg/motion"
	"github.com/teslashibe/go-locomotion/pkg/xform"
)

// heartbeatTicks is how often the loop logs a summary.
const heartbeatTicks = 300

// Manager runs the locomotion control loop for one character.
type Manager struct {
	publisher Publisher
	opts      Options
	rate      time.Duration

	// Owned by the loop goroutine.
	gen       *motion.Generator
	blender   *inertialize.Manager
	steerTick uint64

	mu sync.RWMutex

	// Pending inputs, applied at the start of the next tick.
	pending       *Objective
	pendingSteer  Steering
	clearSteer    bool
	pendingReload *motion.Selecter

	steering  Steering
	objective Objective
	modes     int
	last      Update

	// Control loop
	stop     chan struct{}
	stopOnce sync.Once
	running  bool

	// Diagnostics
	tickCount       uint64
	discontinuities uint64
	reloads         uint64
	errorCount      uint64
	blends          int

	logger *slog.Logger
}

// NewManager wraps gen in an inertialization stage and returns a manager
// publishing to publisher. publisher may be nil.
func NewManager(gen *motion.Generator, publisher Publisher, opts Options) *Manager {
	rate := opts.Rate
	if rate <= 0 {
		rate = time.Duration(gen.Clip().FrameTime * float64(time.Second))
	}
	dir, moving := gen.Objective()

	m := &Manager{
		publisher: publisher,
		opts:      opts,
		rate:      rate,
		gen:       gen,
		objective: Objective{Direction: dir, Moving: moving, Mode: gen.Selecter().Mode()},
		modes:     gen.Selecter().Modes(),
		stop:      make(chan struct{}),
		logger:    log.For("movement"),
	}
	m.blender = m.newBlender(gen)
	return m
}

func (m *Manager) newBlender(gen *motion.Generator) *inertialize.Manager {
	return inertialize.New(gen.Clip(), gen.Next, inertialize.Options{
		HalfLife:      m.opts.HalfLife,
		FrameTime:     gen.Clip().FrameTime,
		HandleContact: m.opts.HandleContact,
		UnlockRadius:  m.opts.UnlockRadius,
		ContactJoints: gen.ContactJoints(),
	})
}

// Run starts the control loop. Blocks until Stop is called.
func (m *Manager) Run() {
	ticker := time.NewTicker(m.rate)
	defer ticker.Stop()

	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	m.logger.Info("movement loop started", "hz", 1/m.rate.Seconds())

	for {
		select {
		case <-m.stop:
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			m.logger.Info("movement loop stopped", "ticks", m.Stats().Ticks)
			return
		case <-ticker.C:
			m.Step()
		}
	}
}

// Stop halts the control loop. It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Step runs one control cycle and returns the published update. Run calls it
// on every tick; callers driving the manager by hand must not call it
// concurrently with Run.
func (m *Manager) Step() Update {
	m.mu.Lock()
	pending, reload := m.pending, m.pendingReload
	m.pending, m.pendingReload = nil, nil
	if m.clearSteer {
		m.steering, m.clearSteer = nil, false
	}
	if m.pendingSteer != nil {
		m.steering, m.pendingSteer = m.pendingSteer, nil
		m.steerTick = m.tickCount
	}
	steering := m.steering
	m.mu.Unlock()

	// 1. Swap libraries
	if reload != nil {
		m.applyReload(reload)
	}

	// 2. Resolve the objective
	objective := m.currentObjective()
	switch {
	case steering != nil:
		elapsed := time.Duration(m.tickCount-m.steerTick) * m.rate
		objective = steering.Objective(elapsed, xform.Ground(m.gen.Pose().Root()), m.gen.Facing())
	case pending != nil:
		objective = *pending
	}
	if err := m.gen.SetObjective(objective.Direction, objective.Moving, objective.Mode); err != nil {
		m.logger.Warn("objective rejected", "error", err)
		objective = m.currentObjective()
	}

	// 3. Pull one smoothed frame
	frame := m.blender.Next()
	update := Update{
		Frame:  frame,
		State:  m.gen.State(),
		Mode:   objective.Mode,
		Facing: m.gen.Facing(),
	}

	m.mu.Lock()
	m.tickCount++
	if frame.Discontinuity {
		m.discontinuities++
	}
	m.objective = objective
	m.last = update
	m.blends = m.blender.Blends()
	ticks := m.tickCount
	m.mu.Unlock()

	// 4. Publish
	if m.publisher != nil {
		if err := m.publisher.Publish(update); err != nil {
			m.mu.Lock()
			m.errorCount++
			count := m.errorCount
			m.mu.Unlock()
			if count%100 == 1 {
				m.logger.Warn("publish failed", "error", err, "failures", count)
			}
		}
	}

	// 5. Periodic heartbeat
	if ticks%heartbeatTicks == 0 {
		root := frame.Translation
		m.logger.Debug("movement heartbeat",
			"ticks", ticks,
			"frame", frame.Frame,
			"state", update.State,
			"x", root.X, "z", root.Z)
	}
	return update
}

func (m *Manager) currentObjective() Objective {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objective
}

// applyReload rebuilds the generator over sel where the character stands now
// and blends into it.
func (m *Manager) applyReload(sel *motion.Selecter) {
	opts := m.opts.Generator
	opts.StartPosition = xform.Ground(m.gen.Pose().Root())
	opts.StartDirection = m.gen.Facing()

	gen, err := motion.NewGenerator(sel, opts)
	if err != nil {
		m.logger.Error("reload failed, keeping current libraries", "error", err)
		return
	}

	if gen.Clip().SameSkeleton(m.gen.Clip()) {
		m.blender.Retarget(gen.Next)
	} else {
		m.blender = m.newBlender(gen)
	}
	m.gen = gen

	m.mu.Lock()
	m.reloads++
	m.modes = sel.Modes()
	if m.objective.Mode >= m.modes {
		m.objective.Mode = 0
	}
	m.mu.Unlock()

	m.logger.Info("motion libraries reloaded", "modes", sel.Modes())
}

// SetObjective queues an objective for the next tick and stops any steering.
func (m *Manager) SetObjective(obj Objective) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if obj.Mode < 0 || obj.Mode >= m.modes {
		return fmt.Errorf("%w: %d (have %d)", motion.ErrUnknownMode, obj.Mode, m.modes)
	}
	m.pending = &obj
	m.pendingSteer = nil
	m.clearSteer = true
	return nil
}

// SetSteering installs a steering source consulted every tick until the next
// SetObjective or ClearSteering.
func (m *Manager) SetSteering(s Steering) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingSteer = s
	m.clearSteer = false
	m.logger.Debug("steering installed", "steering", s.Name())
}

// ClearSteering removes the steering source. The last objective holds.
func (m *Manager) ClearSteering() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingSteer = nil
	m.clearSteer = true
}

// Reload queues a library swap for the next tick.
func (m *Manager) Reload(sel *motion.Selecter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingReload = sel
}

// Rate returns the tick interval.
func (m *Manager) Rate() time.Duration {
	return m.rate
}

// Modes returns the number of motion modes of the current libraries.
func (m *Manager) Modes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.modes
}

// Last returns the most recent update.
func (m *Manager) Last() Update {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Stats returns loop diagnostics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Running:         m.running,
		Rate:            m.rate,
		Ticks:           m.tickCount,
		Frame:           m.last.Frame.Frame,
		Discontinuities: m.discontinuities,
		Blends:          m.blends,
		Reloads:         m.reloads,
		PublishErrors:   m.errorCount,
		State:           m.last.State.String(),
		Mode:            m.objective.Mode,
		Position:        vec3(m.last.Frame.Translation),
		Facing:          vec3(m.last.Facing),
		Objective:       vec3(m.objective.Direction),
		Moving:          m.objective.Moving,
	}
}

func vec3(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
