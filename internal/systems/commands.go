package systems

import (
	"warbound/server/internal/game"
	"warbound/server/internal/sim"
	"warbound/server/internal/telemetry"
)

const commandsAppliedMetricKey = "systems_commands_applied_total"

// CommandApplier turns staged player commands into component mutations at
// the start of a tick batch. It implements sim.Applier.
type CommandApplier struct {
	game    *game.Game
	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// NewCommandApplier constructs the applier for one room's game.
func NewCommandApplier(g *game.Game, logger telemetry.Logger, metrics telemetry.Metrics) *CommandApplier {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &CommandApplier{game: g, logger: logger, metrics: metrics}
}

// Apply implements sim.Applier. Commands arrive in FIFO order; malformed
// entries are logged and skipped, never fatal to the batch.
func (a *CommandApplier) Apply(cmds []sim.Command) {
	if a == nil {
		return
	}
	for _, cmd := range cmds {
		a.applyOne(cmd)
	}
	if len(cmds) > 0 {
		a.metrics.Add(commandsAppliedMetricKey, uint64(len(cmds)))
	}
}

func (a *CommandApplier) applyOne(cmd sim.Command) {
	g := a.game
	switch cmd.Type {
	case sim.CommandMove:
		if cmd.Move == nil {
			a.warnMalformed(cmd)
			return
		}
		for _, id := range cmd.Move.Units {
			if !g.Registry().Alive(id) {
				continue
			}
			if move, ok := movement(g, id); ok {
				move.TargetX = cmd.Move.TargetX
				move.TargetY = cmd.Move.TargetY
				move.Active = true
			}
			// An explicit order overrides auto-acquired aggression.
			if c, ok := combat(g, id); ok {
				c.Target = 0
			}
		}
	case sim.CommandAttack:
		if cmd.Attack == nil || !g.Registry().Alive(cmd.Attack.Target) {
			a.warnMalformed(cmd)
			return
		}
		for _, id := range cmd.Attack.Units {
			if !g.Registry().Alive(id) {
				continue
			}
			if c, ok := combat(g, id); ok {
				c.Target = cmd.Attack.Target
			}
		}
	case sim.CommandCast:
		if cmd.Cast == nil {
			a.warnMalformed(cmd)
			return
		}
		err := Cast(g, cmd.Cast.Caster, cmd.Cast.AbilityID, cmd.Cast.Target, cmd.Cast.TargetX, cmd.Cast.TargetY)
		if err != nil {
			a.logger.Debugw("cast rejected",
				"actor", cmd.ActorID,
				"ability", cmd.Cast.AbilityID,
				"error", err,
			)
		}
	case sim.CommandSpawn:
		if cmd.Spawn == nil {
			a.warnMalformed(cmd)
			return
		}
		if _, err := Spawn(g, cmd.Spawn.UnitID, cmd.Spawn.Team, cmd.Spawn.X, cmd.Spawn.Y); err != nil {
			a.logger.Warnw("spawn rejected", "actor", cmd.ActorID, "unit", cmd.Spawn.UnitID, "error", err)
		}
	case sim.CommandHalt:
		if cmd.Halt == nil {
			a.warnMalformed(cmd)
			return
		}
		for _, id := range cmd.Halt.Units {
			if !g.Registry().Alive(id) {
				continue
			}
			if move, ok := movement(g, id); ok {
				move.Active = false
			}
			if c, ok := combat(g, id); ok {
				c.Target = 0
			}
		}
	case sim.CommandHeartbeat:
		// Connectivity bookkeeping happens at the hub; nothing to mutate.
	default:
		a.logger.Warnw("unknown command type", "actor", cmd.ActorID, "type", cmd.Type)
	}
}

func (a *CommandApplier) warnMalformed(cmd sim.Command) {
	a.logger.Warnw("malformed command payload", "actor", cmd.ActorID, "type", cmd.Type)
}
