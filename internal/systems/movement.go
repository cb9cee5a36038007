package systems

import (
	"warbound/server/internal/game"
)

// arrivalEpsilon is the snap distance for waypoint arrival. Snapping the
// final step keeps positions exact so checksums do not depend on how many
// ticks the approach took.
const arrivalEpsilon = 0.01

// MovementSystem steers entities with an active waypoint toward it at the
// unit definition's move speed.
type MovementSystem struct{}

// NewMovementSystem constructs the movement system.
func NewMovementSystem() *MovementSystem { return &MovementSystem{} }

// Name implements sim.System.
func (s *MovementSystem) Name() string { return "movement" }

// Update implements sim.System.
func (s *MovementSystem) Update(g *game.Game, dt float64) {
	for _, id := range g.EntitiesWith(CompPosition, CompMovement, CompUnit) {
		move, ok := movement(g, id)
		if !ok || !move.Active {
			continue
		}
		pos, ok := position(g, id)
		if !ok {
			continue
		}
		defID, ok := unitDef(g, id)
		if !ok {
			continue
		}
		def, ok := g.Collections().Units[defID]
		if !ok || def.MoveSpeed <= 0 {
			move.Active = false
			continue
		}

		speed := def.MoveSpeed
		if data, ok := g.GetComponent(id, CompSlowed); ok {
			if slow, ok := data.(*Slowed); ok {
				if g.State.Now < slow.Until {
					speed *= slow.Factor
				} else {
					g.RemoveComponent(id, CompSlowed)
				}
			}
		}

		target := Position{X: move.TargetX, Y: move.TargetY}
		dist := distance(pos, &target)
		step := speed * dt
		if dist <= step+arrivalEpsilon {
			pos.X = target.X
			pos.Y = target.Y
			move.Active = false
			continue
		}
		pos.X += (target.X - pos.X) / dist * step
		pos.Y += (target.Y - pos.Y) / dist * step
	}
}
