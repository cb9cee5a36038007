package sim

import (
	"sync"
	"time"

	"warbound/server/internal/telemetry"
)

const (
	// CommandRejectQueueLimit marks a command dropped by per-actor throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull marks a command dropped by a saturated ring.
	CommandRejectQueueFull = "queue_full"
)

// Applier consumes the drained command batch at the start of a tick batch.
// The systems package provides the implementation.
type Applier interface {
	Apply(cmds []Command)
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(cmds []Command)

// Apply implements Applier.
func (f ApplierFunc) Apply(cmds []Command) { f(cmds) }

// StepContext carries the real-time facts for one loop iteration.
type StepContext struct {
	Now   time.Time
	Delta float64
}

// StepResult reports what one loop iteration did.
type StepResult struct {
	Ticks        int
	Tick         uint64
	SimTime      float64
	Commands     []Command
	Snapshot     Snapshot
	Checksum     uint64
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
}

// Hooks let the hub observe the loop without the loop importing it.
type Hooks struct {
	Prepare        func(StepContext)
	AfterStep      func(StepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// LoopConfig tunes pacing and command ingestion.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// Loop paces a Runner against real time and stages inbound commands. The
// runner stays deterministic; everything wall-clock-flavored lives here.
type Loop struct {
	runner  *Runner
	applier Applier
	buffer  *CommandBuffer
	hooks   Hooks
	config  LoopConfig
	clock   telemetry.Clock
	logger  telemetry.Logger

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64
}

// NewLoop wraps the runner with a command ring and real-time pacing.
func NewLoop(runner *Runner, applier Applier, cfg LoopConfig, hooks Hooks, clock telemetry.Clock, logger telemetry.Logger, metrics telemetry.Metrics) *Loop {
	if runner == nil {
		return nil
	}
	if clock == nil {
		clock = telemetry.SystemClock{}
	}
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 20
	}
	return &Loop{
		runner:        runner,
		applier:       applier,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, metrics),
		hooks:         hooks,
		config:        cfg,
		clock:         clock,
		logger:        logger,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Runner exposes the deterministic core, for snapshotting outside the loop.
func (l *Loop) Runner() *Runner {
	if l == nil {
		return nil
	}
	return l.runner
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing the per-actor throttle and the ring
// capacity. Returns false with a reject reason on drop.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	warnLength := 0
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				warnLength = length
			}
		}
	}
	l.queueMu.Unlock()

	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	if warnLength > 0 && l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(warnLength)
	}
	return true, ""
}

// Advance drains staged commands, applies them, and feeds the real delta
// into the runner. One call may cover several fixed ticks.
func (l *Loop) Advance(ctx StepContext) StepResult {
	if l == nil {
		return StepResult{}
	}
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(ctx)
	}
	if l.applier != nil && len(commands) > 0 {
		l.applier.Apply(commands)
	}
	ticks := l.runner.Advance(ctx.Delta)

	result := StepResult{
		Ticks:    ticks,
		Tick:     l.runner.Tick(),
		SimTime:  l.runner.SimTime(),
		Commands: commands,
	}
	if ticks > 0 {
		snapshot, err := Capture(l.runner.game)
		if err != nil {
			l.logger.Errorw("snapshot capture failed", "tick", result.Tick, "error", err)
			return result
		}
		result.Snapshot = snapshot
		checksum, err := snapshot.Checksum()
		if err != nil {
			l.logger.Errorw("snapshot checksum failed", "tick", result.Tick, "error", err)
		} else {
			result.Checksum = checksum
		}
	}
	return result
}

// Run paces the loop until the stop channel closes. Deltas are clamped to
// CatchupMaxTicks budgets so a stalled host does not spiral: the world
// slows down instead of freezing the process in catch-up.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	budget := time.Second / time.Duration(l.config.TickRate)
	budgetSeconds := budget.Seconds()
	maxDelta := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDelta = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	l.runner.Start()
	defer l.runner.Stop()

	last := l.clock.Now()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := l.clock.Now()
			delta := now.Sub(last).Seconds()
			clamped := false
			if delta <= 0 {
				delta = budgetSeconds
			} else if delta > maxDelta {
				delta = maxDelta
				clamped = true
			}
			last = now

			start := l.clock.Now()
			result := l.Advance(StepContext{Now: now, Delta: delta})
			result.Duration = l.clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	// Log per-actor drops at power-of-two counts to keep the log quiet
	// under sustained flooding.
	if count > 0 && count&(count-1) == 0 {
		l.logger.Warnw("dropping command",
			"reason", reason,
			"actor", cmd.ActorID,
			"type", cmd.Type,
			"count", count,
			"limit", l.config.PerActorLimit,
		)
	}
}
