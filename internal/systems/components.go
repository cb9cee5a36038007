// Package systems holds the fixed-order tick consumers: movement, combat,
// health, and behavior-tree AI, plus the command applier that turns staged
// player intents into component mutations.
package systems

import "warbound/server/internal/ecs"

// Component type keys. Systems and behavior actions share these; snapshots
// serialize them, so the structs below carry JSON tags.
const (
	CompPosition = "position"
	CompMovement = "movement"
	CompCombat   = "combat"
	CompHealth   = "health"
	CompTeam     = "team"
	CompUnit     = "unit"
	CompBrain    = "brain"
	CompCaster   = "caster"
	CompInbox    = "inbox"
	CompSlowed   = "slowed"
)

// Position is a world-space location.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Movement is a waypoint order. The movement system steers the entity
// toward the target at the unit's move speed and clears Active on arrival.
type Movement struct {
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
	Active  bool    `json:"active"`
}

// Combat tracks the current victim and the attack timing gate. LastAttack
// is written by the combat system only; behavior actions request attacks
// by setting Target and leaving the gate alone.
type Combat struct {
	Target     ecs.EntityID `json:"target"`
	LastAttack float64      `json:"lastAttack"`
}

// Health is the mutable hit-point pool. Only the health system writes
// Current; everyone else deposits into the entity's damage inbox.
type Health struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// Team is the allegiance tag used for target filtering.
type Team struct {
	Name string `json:"name"`
}

// Unit links the entity to its content definition.
type Unit struct {
	DefinitionID string `json:"definitionId"`
}

// Brain marks an AI-controlled entity and names its behavior tree. The
// scratch fields are the per-entity blackboard for multi-tick actions.
type Brain struct {
	Tree       string       `json:"tree"`
	WanderX    float64      `json:"wanderX"`
	WanderY    float64      `json:"wanderY"`
	HasWander  bool         `json:"hasWander"`
	GuardAlly  ecs.EntityID `json:"guardAlly"`
	RetreatDir float64      `json:"retreatDir"`
}

// Caster tracks per-ability cooldown gates as sim-time ready stamps.
type Caster struct {
	ReadyAt map[string]float64 `json:"readyAt"`
}

// Slowed scales the unit's move speed until a sim-time deadline. The
// movement system discards it once expired.
type Slowed struct {
	Factor float64 `json:"factor"`
	Until  float64 `json:"until"`
}

// DamageEvent is one pending health mutation. Negative amounts heal.
type DamageEvent struct {
	Amount float64      `json:"amount"`
	Source ecs.EntityID `json:"source"`
	Kind   string       `json:"kind"`
}

// Inbox queues health mutations for the health system to drain. Routing
// every mutation through one consumer keeps application order (and thus
// death order) identical on every peer.
type Inbox struct {
	Events []DamageEvent `json:"events"`
}
