package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"warbound/server/internal/config"
	"warbound/server/internal/content"
	"warbound/server/internal/ecs"
	"warbound/server/internal/sim"
)

func testHubConfig(t *testing.T, seed uint64) HubConfig {
	t.Helper()
	cols, err := content.Load(nil)
	require.NoError(t, err)
	return HubConfig{
		Sim:         config.Default().Sim,
		Seed:        seed,
		Collections: cols,
	}
}

func TestHubRoomLifecycle(t *testing.T) {
	hub := NewHub(testHubConfig(t, 0))
	defer hub.Shutdown()

	room, err := hub.CreateRoom()
	require.NoError(t, err)
	require.NotEmpty(t, room.ID())
	require.NotZero(t, room.Seed(), "unseeded hubs derive the seed from the room id")

	t.Run("lookup", func(t *testing.T) {
		found, ok := hub.Room(room.ID())
		require.True(t, ok)
		require.Same(t, room, found)

		_, ok = hub.Room("nope")
		require.False(t, ok)
	})

	t.Run("join issues sessions", func(t *testing.T) {
		response, err := hub.Join(room.ID())
		require.NoError(t, err)
		require.Equal(t, room.ID(), response.RoomID)
		require.NotEmpty(t, response.SessionID)
		require.Equal(t, room.Seed(), response.Seed)
		require.Equal(t, 20, response.TickRate)

		_, err = hub.Join("nope")
		require.Error(t, err)
	})

	t.Run("diagnostics", func(t *testing.T) {
		infos := hub.Rooms()
		require.Len(t, infos, 1)
		require.Equal(t, room.ID(), infos[0].ID)
	})

	t.Run("close removes", func(t *testing.T) {
		hub.CloseRoom(room.ID())
		_, ok := hub.Room(room.ID())
		require.False(t, ok)
	})
}

func TestJoinSnapshotDetachedFromLiveRoom(t *testing.T) {
	cols, err := content.Load(nil)
	require.NoError(t, err)
	room, err := newRoom(roomConfig{
		id:          "join-detach",
		seed:        7,
		sim:         config.Default().Sim,
		collections: cols,
	})
	require.NoError(t, err)
	room.loop.Runner().Start()
	step := config.Default().Sim.TickStep()

	ok, reason := room.Enqueue(sim.Command{
		Type:    sim.CommandSpawn,
		ActorID: "p1",
		Spawn:   &sim.SpawnCommand{UnitID: "footman", Team: "red", X: 0, Y: 0},
	})
	require.True(t, ok, reason)
	room.afterStep(room.loop.Advance(sim.StepContext{Delta: step}))

	joined := room.join("session")
	require.Equal(t, uint64(1), joined.Tick)
	before, err := json.Marshal(joined.Snapshot)
	require.NoError(t, err)

	// Keep the world moving after the bootstrap was issued.
	ok, reason = room.Enqueue(sim.Command{
		Type:    sim.CommandMove,
		ActorID: "p1",
		Move:    &sim.MoveCommand{Units: []ecs.EntityID{1}, TargetX: 500, TargetY: 0},
	})
	require.True(t, ok, reason)
	for i := 0; i < 20; i++ {
		room.afterStep(room.loop.Advance(sim.StepContext{Delta: step}))
	}

	after, err := json.Marshal(joined.Snapshot)
	require.NoError(t, err)
	require.Equal(t, before, after, "the join bootstrap must stay pinned to the tick it was issued for")
}

func TestHubFixedSeedIsShared(t *testing.T) {
	hub := NewHub(testHubConfig(t, 1234))
	defer hub.Shutdown()

	a, err := hub.CreateRoom()
	require.NoError(t, err)
	b, err := hub.CreateRoom()
	require.NoError(t, err)
	require.Equal(t, uint64(1234), a.Seed())
	require.Equal(t, a.Seed(), b.Seed())
}
