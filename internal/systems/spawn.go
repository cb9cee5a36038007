package systems

import (
	"fmt"
	"math"

	"warbound/server/internal/ecs"
	"warbound/server/internal/game"
)

// Spawn creates a unit entity from its content definition. Returns the new
// entity id, or an error for an unknown definition.
func Spawn(g *game.Game, unitID, team string, x, y float64) (ecs.EntityID, error) {
	cols := g.Collections()
	if cols == nil {
		return 0, fmt.Errorf("systems: no content collections loaded")
	}
	def, ok := cols.Units[unitID]
	if !ok {
		return 0, fmt.Errorf("systems: unknown unit %q", unitID)
	}

	id := g.CreateEntity()
	g.AddComponent(id, CompPosition, &Position{X: x, Y: y})
	g.AddComponent(id, CompMovement, &Movement{})
	g.AddComponent(id, CompHealth, &Health{Current: def.MaxHealth, Max: def.MaxHealth})
	g.AddComponent(id, CompTeam, &Team{Name: team})
	g.AddComponent(id, CompUnit, &Unit{DefinitionID: unitID})
	g.AddComponent(id, CompCombat, &Combat{})
	g.AddComponent(id, CompInbox, &Inbox{})
	if len(def.Abilities) > 0 {
		g.AddComponent(id, CompCaster, &Caster{ReadyAt: make(map[string]float64)})
	}
	if def.Behavior != "" {
		g.AddComponent(id, CompBrain, &Brain{Tree: def.Behavior})
	}
	return id, nil
}

// unitDef resolves the content definition behind an entity, if any.
func unitDef(g *game.Game, id ecs.EntityID) (string, bool) {
	data, ok := g.GetComponent(id, CompUnit)
	if !ok {
		return "", false
	}
	unit, ok := data.(*Unit)
	if !ok {
		return "", false
	}
	return unit.DefinitionID, true
}

func position(g *game.Game, id ecs.EntityID) (*Position, bool) {
	data, ok := g.GetComponent(id, CompPosition)
	if !ok {
		return nil, false
	}
	pos, ok := data.(*Position)
	return pos, ok
}

func movement(g *game.Game, id ecs.EntityID) (*Movement, bool) {
	data, ok := g.GetComponent(id, CompMovement)
	if !ok {
		return nil, false
	}
	move, ok := data.(*Movement)
	return move, ok
}

func combat(g *game.Game, id ecs.EntityID) (*Combat, bool) {
	data, ok := g.GetComponent(id, CompCombat)
	if !ok {
		return nil, false
	}
	c, ok := data.(*Combat)
	return c, ok
}

func health(g *game.Game, id ecs.EntityID) (*Health, bool) {
	data, ok := g.GetComponent(id, CompHealth)
	if !ok {
		return nil, false
	}
	h, ok := data.(*Health)
	return h, ok
}

func team(g *game.Game, id ecs.EntityID) (string, bool) {
	data, ok := g.GetComponent(id, CompTeam)
	if !ok {
		return "", false
	}
	t, ok := data.(*Team)
	if !ok {
		return "", false
	}
	return t.Name, true
}

func brain(g *game.Game, id ecs.EntityID) (*Brain, bool) {
	data, ok := g.GetComponent(id, CompBrain)
	if !ok {
		return nil, false
	}
	b, ok := data.(*Brain)
	return b, ok
}

func caster(g *game.Game, id ecs.EntityID) (*Caster, bool) {
	data, ok := g.GetComponent(id, CompCaster)
	if !ok {
		return nil, false
	}
	c, ok := data.(*Caster)
	return c, ok
}

func inbox(g *game.Game, id ecs.EntityID) (*Inbox, bool) {
	data, ok := g.GetComponent(id, CompInbox)
	if !ok {
		return nil, false
	}
	in, ok := data.(*Inbox)
	return in, ok
}

// depositDamage queues a health mutation on the victim. Entities without an
// inbox are invulnerable by construction.
func depositDamage(g *game.Game, victim ecs.EntityID, event DamageEvent) {
	in, ok := inbox(g, victim)
	if !ok {
		return
	}
	in.Events = append(in.Events, event)
}

func distance(a, b *Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}
