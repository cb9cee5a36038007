// Package sim drives the fixed-timestep simulation. The Runner is the
// deterministic core shared by every peer in a lockstep session; the Loop
// wraps it with real-time pacing and command ingestion on the server.
package sim

import (
	"warbound/server/internal/game"
	"warbound/server/internal/telemetry"
)

// System is one fixed-order consumer of the tick. Systems read and write
// components through the game context and must tolerate entities missing
// the components they care about.
type System interface {
	Name() string
	Update(g *game.Game, dt float64)
}

type runnerState int

const (
	runnerIdle runnerState = iota
	runnerRunning
	runnerStopped
)

const (
	ticksAdvancedMetricKey = "sim_ticks_advanced_total"
	systemPanicsMetricKey  = "sim_system_panics_total"
)

// Runner advances the simulation in fixed steps. Real elapsed time is
// accumulated and consumed in tickStep slices, so the number of ticks is a
// pure function of the delta sequence regardless of call granularity.
type Runner struct {
	game     *game.Game
	systems  []System
	tickStep float64

	state       runnerState
	accumulator float64
	simTime     float64
	tick        uint64

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// NewRunner constructs a stopped runner ticking at tickStep seconds.
func NewRunner(g *game.Game, tickStep float64, logger telemetry.Logger, metrics telemetry.Metrics) *Runner {
	if tickStep <= 0 {
		tickStep = 0.05
	}
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Runner{
		game:     g,
		tickStep: tickStep,
		logger:   logger,
		metrics:  metrics,
	}
}

// AddSystem appends a system. Registration order is evaluation order and
// must match on every peer of a lockstep session.
func (r *Runner) AddSystem(s System) {
	if r == nil || s == nil {
		return
	}
	r.systems = append(r.systems, s)
}

// Start begins (or resumes) ticking. Sim time is monotonic across a
// Stop/Start cycle; only the pending accumulator is discarded.
func (r *Runner) Start() {
	if r == nil {
		return
	}
	r.state = runnerRunning
	r.accumulator = 0
}

// Stop halts ticking. Advance becomes a no-op until Start is called again.
func (r *Runner) Stop() {
	if r == nil {
		return
	}
	r.state = runnerStopped
}

// Running reports whether the runner consumes deltas.
func (r *Runner) Running() bool {
	return r != nil && r.state == runnerRunning
}

// Tick returns the number of completed fixed steps.
func (r *Runner) Tick() uint64 {
	if r == nil {
		return 0
	}
	return r.tick
}

// SimTime returns the simulation clock in seconds.
func (r *Runner) SimTime() float64 {
	if r == nil {
		return 0
	}
	return r.simTime
}

// TickStep returns the fixed step in seconds.
func (r *Runner) TickStep() float64 {
	if r == nil {
		return 0
	}
	return r.tickStep
}

// Advance feeds realDelta seconds into the accumulator and runs every tick
// it covers. Returns the number of ticks executed. Negative deltas are
// dropped with a warning; a stopped or unstarted runner consumes nothing.
func (r *Runner) Advance(realDelta float64) int {
	if r == nil || r.state != runnerRunning {
		return 0
	}
	if realDelta < 0 {
		r.logger.Warnw("negative frame delta dropped", "delta", realDelta)
		return 0
	}
	r.accumulator += realDelta
	ticks := 0
	for r.accumulator >= r.tickStep {
		r.accumulator -= r.tickStep
		r.step()
		ticks++
	}
	if ticks > 0 {
		r.metrics.Add(ticksAdvancedMetricKey, uint64(ticks))
	}
	return ticks
}

// step runs exactly one fixed tick: advance the clock, fire due scheduled
// actions, then update systems in registration order.
func (r *Runner) step() {
	r.simTime += r.tickStep
	r.tick++
	r.game.State.Now = r.simTime
	r.game.State.DeltaTime = r.tickStep
	r.game.State.Tick = r.tick

	// Scheduled actions fire before systems so a zero-delay action
	// scheduled last tick is visible to every system this tick.
	r.game.Scheduler().Tick(r.simTime)

	for _, s := range r.systems {
		r.updateSystem(s)
	}
}

func (r *Runner) updateSystem(s System) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.metrics.Add(systemPanicsMetricKey, 1)
			r.logger.Errorw("system panicked", "system", s.Name(), "tick", r.tick, "panic", recovered)
		}
	}()
	s.Update(r.game, r.tickStep)
}
