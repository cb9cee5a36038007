package sim

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"warbound/server/internal/ecs"
	"warbound/server/internal/game"
)

// EntitySnapshot is one entity's full component bag at a tick. Components
// are stored pre-encoded so the snapshot never aliases live world state.
type EntitySnapshot struct {
	ID         ecs.EntityID               `json:"id"`
	Components map[string]json.RawMessage `json:"components"`
}

// Snapshot is the authoritative world state at the end of a tick, in
// canonical order: entities ascending by id, component keys sorted by the
// JSON encoder. Two peers in lockstep must produce byte-identical
// encodings, which is what Checksum hashes.
type Snapshot struct {
	Tick     uint64           `json:"tick"`
	Now      float64          `json:"now"`
	Entities []EntitySnapshot `json:"entities"`
}

// Capture builds an immutable snapshot from the live registry. Components
// are encoded on the tick goroutine, inside Capture, so a published frame
// can be marshaled or handed to joining clients later without racing the
// systems that keep mutating the underlying structs.
func Capture(g *game.Game) (Snapshot, error) {
	snapshot := Snapshot{
		Tick: g.State.Tick,
		Now:  g.State.Now,
	}
	ids := g.Registry().AllEntities()
	snapshot.Entities = make([]EntitySnapshot, 0, len(ids))
	for _, id := range ids {
		components := make(map[string]json.RawMessage)
		for _, ctype := range g.Registry().ComponentTypes(id) {
			data, ok := g.GetComponent(id, ctype)
			if !ok {
				continue
			}
			encoded, err := json.Marshal(data)
			if err != nil {
				return Snapshot{}, fmt.Errorf("sim: encode component %s of entity %d: %w", ctype, id, err)
			}
			components[ctype] = encoded
		}
		snapshot.Entities = append(snapshot.Entities, EntitySnapshot{
			ID:         id,
			Components: components,
		})
	}
	return snapshot, nil
}

// Checksum hashes the canonical encoding of the snapshot. Clients report
// their checksum after each tick batch; a mismatch against the server's is
// a lockstep divergence.
func (s Snapshot) Checksum() (uint64, error) {
	encoded, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("sim: encode snapshot: %w", err)
	}
	return xxhash.Sum64(encoded), nil
}
