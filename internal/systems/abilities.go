package systems

import (
	"errors"
	"fmt"

	"warbound/server/internal/content"
	"warbound/server/internal/ecs"
	"warbound/server/internal/game"
)

// Cast failure modes callers branch on.
var (
	ErrUnknownAbility = errors.New("systems: unknown ability")
	ErrNotACaster     = errors.New("systems: entity cannot cast")
	ErrOnCooldown     = errors.New("systems: ability on cooldown")
	ErrOutOfRange     = errors.New("systems: target out of range")
	ErrNoTarget       = errors.New("systems: target required")
)

// Cast starts an ability. Validation (cooldown, range, target liveness)
// happens now; the effects land after the definition's cast time via the
// scheduler, owned by the caster so death interrupts the cast.
//
// target is the victim entity for targeted abilities; tx/ty is the impact
// point for point casts (target == 0).
func Cast(g *game.Game, casterID ecs.EntityID, abilityID string, target ecs.EntityID, tx, ty float64) error {
	cols := g.Collections()
	if cols == nil {
		return ErrUnknownAbility
	}
	def, ok := cols.Abilities[abilityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAbility, abilityID)
	}
	state, ok := caster(g, casterID)
	if !ok {
		return ErrNotACaster
	}
	casterPos, ok := position(g, casterID)
	if !ok {
		return ErrNotACaster
	}

	now := g.State.Now
	if readyAt, tracked := state.ReadyAt[abilityID]; tracked && now < readyAt {
		return ErrOnCooldown
	}

	impact := Position{X: tx, Y: ty}
	if target != 0 {
		if !g.Registry().Alive(target) {
			return ErrNoTarget
		}
		targetPos, ok := position(g, target)
		if !ok {
			return ErrNoTarget
		}
		impact = *targetPos
	}
	if def.Range > 0 && distance(casterPos, &impact) > def.Range {
		return ErrOutOfRange
	}

	if state.ReadyAt == nil {
		state.ReadyAt = make(map[string]float64)
	}
	state.ReadyAt[abilityID] = now + def.Cooldown

	land := func() {
		applyEffects(g, casterID, def, target, impact)
	}
	if def.CastTime > 0 {
		g.ScheduleAction(land, def.CastTime, casterID)
	} else {
		land()
	}
	return nil
}

// applyEffects resolves each effect entry of a landed ability. The impact
// point is re-read from a still-alive victim so projectiles land where the
// target is, not where it was at cast start.
func applyEffects(g *game.Game, casterID ecs.EntityID, def content.AbilityDefinition, target ecs.EntityID, impact Position) {
	if target != 0 {
		if pos, ok := position(g, target); ok {
			impact = *pos
		}
	}
	for _, effect := range def.Effects {
		switch effect.Kind {
		case "damage":
			forEachVictim(g, casterID, target, impact, effect.Radius, func(victim ecs.EntityID) {
				depositDamage(g, victim, DamageEvent{Amount: effect.Amount, Source: casterID, Kind: def.ID})
			})
		case "heal":
			healTarget := target
			if healTarget == 0 {
				healTarget = casterID
			}
			depositDamage(g, healTarget, DamageEvent{Amount: -effect.Amount, Source: casterID, Kind: def.ID})
		case "damage-over-time":
			forEachVictim(g, casterID, target, impact, effect.Radius, func(victim ecs.EntityID) {
				schedulePeriodic(g, casterID, def.ID, victim, effect)
			})
		case "slow":
			forEachVictim(g, casterID, target, impact, effect.Radius, func(victim ecs.EntityID) {
				factor := 1 - effect.Amount
				if factor < 0 {
					factor = 0
				}
				until := g.State.Now + effect.Interval
				g.AddComponent(victim, CompSlowed, &Slowed{Factor: factor, Until: until})
			})
		default:
			g.Logger().Warnw("unknown effect kind", "ability", def.ID, "kind", effect.Kind)
		}
	}
}

// forEachVictim applies fn to the single target, or to every enemy of the
// caster within radius of the impact point in entity-id order.
func forEachVictim(g *game.Game, casterID, target ecs.EntityID, impact Position, radius float64, fn func(ecs.EntityID)) {
	if radius <= 0 {
		if target != 0 && g.Registry().Alive(target) {
			fn(target)
		}
		return
	}
	casterTeam, _ := team(g, casterID)
	for _, id := range g.EntitiesWith(CompPosition, CompHealth, CompTeam) {
		if id == casterID {
			continue
		}
		victimTeam, ok := team(g, id)
		if !ok || victimTeam == casterTeam {
			continue
		}
		pos, ok := position(g, id)
		if !ok {
			continue
		}
		if distance(pos, &impact) <= radius {
			fn(id)
		}
	}
}

// schedulePeriodic chains a damage-over-time effect through the scheduler:
// each application re-schedules the next until the tick budget is spent.
// The chain is owned by the victim, so its death cancels the remainder.
func schedulePeriodic(g *game.Game, source ecs.EntityID, kind string, victim ecs.EntityID, effect content.EffectDefinition) {
	if effect.Ticks <= 0 || effect.Interval <= 0 {
		return
	}
	remaining := effect.Ticks
	var fire func()
	fire = func() {
		depositDamage(g, victim, DamageEvent{Amount: effect.Amount, Source: source, Kind: kind})
		remaining--
		if remaining > 0 {
			g.ScheduleAction(fire, effect.Interval, victim)
		}
	}
	g.ScheduleAction(fire, effect.Interval, victim)
}

// RegisterServices installs the late-bound ability entry point so content
// code can cast without importing this package.
func RegisterServices(g *game.Game) {
	g.RegisterService("ability.cast", func(args ...any) (any, error) {
		if len(args) < 3 {
			return nil, fmt.Errorf("systems: ability.cast wants (caster, abilityID, target)")
		}
		casterID, ok := args[0].(ecs.EntityID)
		if !ok {
			return nil, fmt.Errorf("systems: ability.cast: bad caster argument")
		}
		abilityID, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("systems: ability.cast: bad ability argument")
		}
		target, ok := args[2].(ecs.EntityID)
		if !ok {
			return nil, fmt.Errorf("systems: ability.cast: bad target argument")
		}
		return nil, Cast(g, casterID, abilityID, target, 0, 0)
	})
}
