package systems

import (
	"sort"

	"warbound/server/internal/ecs"
	"warbound/server/internal/game"
)

// aggroRadius bounds automatic target acquisition.
const aggroRadius = 220.0

// CombatSystem resolves basic attacks: entities with a live combat target
// in range swing when their cooldown gate opens. It is the only writer of
// Combat.LastAttack.
type CombatSystem struct{}

// NewCombatSystem constructs the combat system.
func NewCombatSystem() *CombatSystem { return &CombatSystem{} }

// Name implements sim.System.
func (s *CombatSystem) Name() string { return "combat" }

// Update implements sim.System.
func (s *CombatSystem) Update(g *game.Game, dt float64) {
	now := g.State.Now
	for _, id := range g.EntitiesWith(CompCombat, CompPosition, CompUnit) {
		c, ok := combat(g, id)
		if !ok || c.Target == 0 {
			continue
		}
		if !g.Registry().Alive(c.Target) {
			c.Target = 0
			continue
		}
		defID, ok := unitDef(g, id)
		if !ok {
			continue
		}
		def, ok := g.Collections().Units[defID]
		if !ok || def.AttackDamage <= 0 {
			continue
		}
		pos, ok := position(g, id)
		if !ok {
			continue
		}
		targetPos, ok := position(g, c.Target)
		if !ok {
			continue
		}
		if distance(pos, targetPos) > def.AttackRange {
			continue
		}
		// LastAttack zero means the entity has never swung; sim time is
		// already positive by the first tick.
		if c.LastAttack > 0 && now-c.LastAttack < def.AttackCooldown {
			continue
		}
		c.LastAttack = now
		depositDamage(g, c.Target, DamageEvent{
			Amount: def.AttackDamage,
			Source: id,
			Kind:   "attack",
		})
	}
}

// AcquireTarget picks the attacker's best enemy within the aggro radius.
// The comparator is part of the lockstep contract: lowest health first,
// then nearest, then lowest entity id. Returns 0 when nothing qualifies.
func AcquireTarget(g *game.Game, attacker ecs.EntityID) ecs.EntityID {
	pos, ok := position(g, attacker)
	if !ok {
		return 0
	}
	ownTeam, ok := team(g, attacker)
	if !ok {
		return 0
	}

	type candidate struct {
		id     ecs.EntityID
		health float64
		dist   float64
	}
	var candidates []candidate
	for _, other := range g.EntitiesWith(CompPosition, CompHealth, CompTeam) {
		if other == attacker {
			continue
		}
		otherTeam, ok := team(g, other)
		if !ok || otherTeam == ownTeam {
			continue
		}
		otherPos, ok := position(g, other)
		if !ok {
			continue
		}
		d := distance(pos, otherPos)
		if d > aggroRadius {
			continue
		}
		h, ok := health(g, other)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{id: other, health: h.Current, dist: d})
	}
	if len(candidates) == 0 {
		return 0
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].health != candidates[j].health {
			return candidates[i].health < candidates[j].health
		}
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].id < candidates[j].id
	})
	return candidates[0].id
}
