package server

import (
	"warbound/server/internal/sim"
)

// msgTypeState tags the authoritative broadcast envelope.
const msgTypeState = "state"

// stateMessage is the authoritative broadcast after each tick batch. The
// checksum lets lockstep clients verify their local simulation without
// shipping diffs.
type stateMessage struct {
	Type     string       `json:"type"`
	Tick     uint64       `json:"tick"`
	Now      float64      `json:"now"`
	Checksum uint64       `json:"checksum"`
	Snapshot sim.Snapshot `json:"snapshot"`
}

// JoinResponse is returned by the HTTP join endpoint. The seed and tick
// rate are everything a client needs to run the identical simulation.
type JoinResponse struct {
	RoomID    string       `json:"roomId"`
	SessionID string       `json:"sessionId"`
	Seed      uint64       `json:"seed"`
	TickRate  int          `json:"tickRate"`
	Tick      uint64       `json:"tick"`
	Snapshot  sim.Snapshot `json:"snapshot"`
}

// RoomInfo is the diagnostics view of one room.
type RoomInfo struct {
	ID          string `json:"id"`
	Seed        uint64 `json:"seed"`
	Tick        uint64 `json:"tick"`
	Entities    int    `json:"entities"`
	Subscribers int    `json:"subscribers"`
	Pending     int    `json:"pendingCommands"`
}
