package sim

import (
	"time"

	"warbound/server/internal/ecs"
)

// CommandType enumerates the player intents a room accepts.
type CommandType string

const (
	CommandMove      CommandType = "Move"
	CommandHalt      CommandType = "Halt"
	CommandAttack    CommandType = "Attack"
	CommandCast      CommandType = "Cast"
	CommandSpawn     CommandType = "Spawn"
	CommandHeartbeat CommandType = "Heartbeat"
)

// MoveCommand orders units to a map position.
type MoveCommand struct {
	Units   []ecs.EntityID `json:"units"`
	TargetX float64        `json:"targetX"`
	TargetY float64        `json:"targetY"`
}

// AttackCommand orders units onto a specific victim.
type AttackCommand struct {
	Units  []ecs.EntityID `json:"units"`
	Target ecs.EntityID   `json:"target"`
}

// CastCommand triggers an ability from the content collections.
type CastCommand struct {
	Caster    ecs.EntityID `json:"caster"`
	AbilityID string       `json:"abilityId"`
	Target    ecs.EntityID `json:"target,omitempty"`
	TargetX   float64      `json:"targetX,omitempty"`
	TargetY   float64      `json:"targetY,omitempty"`
}

// SpawnCommand produces a unit from a definition at a position.
type SpawnCommand struct {
	UnitID string  `json:"unitId"`
	Team   string  `json:"team"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// HaltCommand stops units in place and clears their orders.
type HaltCommand struct {
	Units []ecs.EntityID `json:"units"`
}

// HeartbeatCommand refreshes connectivity metadata for an actor.
type HeartbeatCommand struct {
	ClientSent int64         `json:"clientSent"`
	RTT        time.Duration `json:"rtt"`
}

// Command is one staged intent. Commands are captured off the transport
// goroutines and applied at the start of the next tick, which keeps peers
// in lockstep: everyone applies the same commands at the same tick.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	ActorID    string            `json:"actorId"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Move       *MoveCommand      `json:"move,omitempty"`
	Attack     *AttackCommand    `json:"attack,omitempty"`
	Cast       *CastCommand      `json:"cast,omitempty"`
	Spawn      *SpawnCommand     `json:"spawn,omitempty"`
	Halt       *HaltCommand      `json:"halt,omitempty"`
	Heartbeat  *HeartbeatCommand `json:"heartbeat,omitempty"`
}
