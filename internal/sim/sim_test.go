package sim

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"warbound/server/internal/game"
)

type recordingSystem struct {
	name  string
	calls int
	log   *[]string
	fn    func(g *game.Game, dt float64)
}

func (s *recordingSystem) Name() string { return s.name }

func (s *recordingSystem) Update(g *game.Game, dt float64) {
	s.calls++
	if s.log != nil {
		*s.log = append(*s.log, s.name)
	}
	if s.fn != nil {
		s.fn(g, dt)
	}
}

func TestRunnerAccumulatorFloorProperty(t *testing.T) {
	cases := []struct {
		step   float64
		deltas []float64
	}{
		{0.05, []float64{0.07, 0.02, 0.06, 0.1}},
		{0.05, []float64{0.049, 0.001, 0.3}},
		{0.1, []float64{0.05, 0.05, 0.05, 0.05, 0.05}},
		{0.0167, []float64{0.016, 0.017, 0.018, 0.1}},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			g := game.New(game.Config{})
			r := NewRunner(g, tc.step, nil, nil)
			r.Start()

			total := 0.0
			ticks := 0
			for _, delta := range tc.deltas {
				ticks += r.Advance(delta)
				total += delta
			}
			want := int(math.Floor(total/tc.step + 1e-9))
			require.Equal(t, want, ticks, "tick count must be floor(total/step)")
			require.Equal(t, uint64(ticks), r.Tick())
		})
	}
}

func TestRunnerLifecycle(t *testing.T) {
	g := game.New(game.Config{})
	sys := &recordingSystem{name: "probe"}
	r := NewRunner(g, 0.05, nil, nil)
	r.AddSystem(sys)

	t.Run("idle runner consumes nothing", func(t *testing.T) {
		require.Zero(t, r.Advance(1.0))
		require.Zero(t, sys.calls)
	})

	t.Run("start enables ticking", func(t *testing.T) {
		r.Start()
		require.Equal(t, 2, r.Advance(0.1))
		require.Equal(t, 2, sys.calls)
		require.InDelta(t, 0.1, r.SimTime(), 1e-9)
	})

	t.Run("stop halts", func(t *testing.T) {
		r.Stop()
		require.Zero(t, r.Advance(1.0))
		require.Equal(t, 2, sys.calls)
	})

	t.Run("restart resumes monotonic sim time", func(t *testing.T) {
		r.Start()
		require.Equal(t, 1, r.Advance(0.05))
		require.InDelta(t, 0.15, r.SimTime(), 1e-9)
		require.Equal(t, uint64(3), r.Tick())
	})

	t.Run("negative delta dropped", func(t *testing.T) {
		before := r.Tick()
		require.Zero(t, r.Advance(-0.5))
		require.Equal(t, before, r.Tick())
	})
}

func TestRunnerSystemOrder(t *testing.T) {
	g := game.New(game.Config{})
	var log []string
	r := NewRunner(g, 0.05, nil, nil)
	for _, name := range []string{"movement", "combat", "health", "ai"} {
		r.AddSystem(&recordingSystem{name: name, log: &log})
	}
	r.Start()
	r.Advance(0.05)
	require.Equal(t, []string{"movement", "combat", "health", "ai"}, log)
}

func TestRunnerSchedulerFiresBeforeSystems(t *testing.T) {
	g := game.New(game.Config{})
	fired := false
	sawFired := false
	sys := &recordingSystem{name: "observer", fn: func(*game.Game, float64) {
		sawFired = fired
	}}
	r := NewRunner(g, 0.05, nil, nil)
	r.AddSystem(sys)
	r.Start()

	g.ScheduleAction(func() { fired = true }, 0.05, 0)
	r.Advance(0.05)
	require.True(t, fired, "due action fires during the tick")
	require.True(t, sawFired, "systems observe actions fired this tick")
}

func TestRunnerSystemPanicIsolated(t *testing.T) {
	g := game.New(game.Config{})
	after := &recordingSystem{name: "after"}
	r := NewRunner(g, 0.05, nil, nil)
	r.AddSystem(&recordingSystem{name: "broken", fn: func(*game.Game, float64) {
		panic("bad component cast")
	}})
	r.AddSystem(after)
	r.Start()

	require.Equal(t, 1, r.Advance(0.05))
	require.Equal(t, 1, after.calls, "a panicking system must not take down the tick")
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func seedWorld(g *game.Game, drift float64) {
	for i := 0; i < 3; i++ {
		id := g.CreateEntity()
		g.AddComponent(id, "position", &position{X: float64(i) * 10, Y: drift})
		g.AddComponent(id, "health", map[string]any{"current": 100.0, "max": 100.0})
	}
}

func TestSnapshotChecksumDeterminism(t *testing.T) {
	run := func(drift float64) uint64 {
		g := game.New(game.Config{Seed: 42})
		seedWorld(g, drift)
		r := NewRunner(g, 0.05, nil, nil)
		r.AddSystem(&recordingSystem{name: "mover", fn: func(g *game.Game, dt float64) {
			for _, id := range g.EntitiesWith("position") {
				data, _ := g.GetComponent(id, "position")
				pos := data.(*position)
				pos.X += dt
			}
		}})
		r.Start()
		for i := 0; i < 20; i++ {
			r.Advance(0.05)
		}
		snapshot, err := Capture(g)
		require.NoError(t, err)
		checksum, err := snapshot.Checksum()
		require.NoError(t, err)
		return checksum
	}

	first := run(0)
	second := run(0)
	diverged := run(0.001)
	require.Equal(t, first, second, "identical runs must hash identically")
	require.NotEqual(t, first, diverged, "state drift must change the checksum")
}

func TestSnapshotCanonicalOrder(t *testing.T) {
	g := game.New(game.Config{})
	seedWorld(g, 0)
	snapshot, err := Capture(g)
	require.NoError(t, err)
	require.Len(t, snapshot.Entities, 3)
	for i := 1; i < len(snapshot.Entities); i++ {
		require.Less(t, snapshot.Entities[i-1].ID, snapshot.Entities[i].ID)
	}
}

func TestSnapshotDetachedFromLiveWorld(t *testing.T) {
	g := game.New(game.Config{})
	seedWorld(g, 0)
	snapshot, err := Capture(g)
	require.NoError(t, err)
	before, err := json.Marshal(snapshot)
	require.NoError(t, err)

	for _, id := range g.EntitiesWith("position") {
		data, _ := g.GetComponent(id, "position")
		data.(*position).X += 500
	}

	after, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.Equal(t, before, after, "a captured snapshot must not track later world mutation")
}

func TestCommandBuffer(t *testing.T) {
	t.Run("fifo drain", func(t *testing.T) {
		b := NewCommandBuffer(4, nil)
		for i := 0; i < 3; i++ {
			require.True(t, b.Push(Command{OriginTick: uint64(i)}))
		}
		drained := b.Drain()
		require.Len(t, drained, 3)
		for i, cmd := range drained {
			require.Equal(t, uint64(i), cmd.OriginTick)
		}
		require.Zero(t, b.Len())
		require.Nil(t, b.Drain())
	})

	t.Run("overflow rejects", func(t *testing.T) {
		b := NewCommandBuffer(2, nil)
		require.True(t, b.Push(Command{}))
		require.True(t, b.Push(Command{}))
		require.False(t, b.Push(Command{}))
		require.Equal(t, 2, b.Len())
	})

	t.Run("wraparound keeps order", func(t *testing.T) {
		b := NewCommandBuffer(2, nil)
		b.Push(Command{OriginTick: 1})
		b.Push(Command{OriginTick: 2})
		b.Drain()
		b.Push(Command{OriginTick: 3})
		b.Push(Command{OriginTick: 4})
		drained := b.Drain()
		require.Equal(t, uint64(3), drained[0].OriginTick)
		require.Equal(t, uint64(4), drained[1].OriginTick)
	})

	t.Run("minimum capacity", func(t *testing.T) {
		b := NewCommandBuffer(0, nil)
		require.Equal(t, 1, b.Capacity())
	})
}

func newTestLoop(cfg LoopConfig, hooks Hooks, applied *[][]Command) *Loop {
	g := game.New(game.Config{})
	runner := NewRunner(g, 0.05, nil, nil)
	runner.Start()
	applier := ApplierFunc(func(cmds []Command) {
		if applied != nil {
			*applied = append(*applied, cmds)
		}
	})
	return NewLoop(runner, applier, cfg, hooks, nil, nil, nil)
}

func TestLoopEnqueueThrottling(t *testing.T) {
	var drops []string
	hooks := Hooks{OnCommandDrop: func(reason string, _ Command) {
		drops = append(drops, reason)
	}}
	l := newTestLoop(LoopConfig{CommandCapacity: 16, PerActorLimit: 2}, hooks, nil)

	ok, _ := l.Enqueue(Command{ActorID: "p1", Type: CommandMove})
	require.True(t, ok)
	ok, _ = l.Enqueue(Command{ActorID: "p1", Type: CommandMove})
	require.True(t, ok)
	ok, reason := l.Enqueue(Command{ActorID: "p1", Type: CommandMove})
	require.False(t, ok)
	require.Equal(t, CommandRejectQueueLimit, reason)
	require.Equal(t, []string{CommandRejectQueueLimit}, drops)

	// Another actor still has budget.
	ok, _ = l.Enqueue(Command{ActorID: "p2", Type: CommandMove})
	require.True(t, ok)
	require.Equal(t, 3, l.Pending())

	// Draining resets per-actor counts.
	l.Advance(StepContext{Delta: 0})
	ok, _ = l.Enqueue(Command{ActorID: "p1", Type: CommandMove})
	require.True(t, ok)
}

func TestLoopEnqueueQueueFull(t *testing.T) {
	l := newTestLoop(LoopConfig{CommandCapacity: 1}, Hooks{}, nil)
	ok, _ := l.Enqueue(Command{ActorID: "p1"})
	require.True(t, ok)
	ok, reason := l.Enqueue(Command{ActorID: "p2"})
	require.False(t, ok)
	require.Equal(t, CommandRejectQueueFull, reason)
}

func TestLoopAdvanceAppliesThenTicks(t *testing.T) {
	var applied [][]Command
	l := newTestLoop(LoopConfig{CommandCapacity: 8}, Hooks{}, &applied)

	l.Enqueue(Command{ActorID: "p1", Type: CommandMove, OriginTick: 0})
	result := l.Advance(StepContext{Delta: 0.1})

	require.Len(t, applied, 1)
	require.Len(t, applied[0], 1)
	require.Equal(t, 2, result.Ticks)
	require.Equal(t, uint64(2), result.Tick)
	require.NotZero(t, result.Checksum, "a ticking advance carries a snapshot checksum")
	require.Len(t, result.Commands, 1)

	// No elapsed time, no ticks, no snapshot.
	idle := l.Advance(StepContext{Delta: 0})
	require.Zero(t, idle.Ticks)
	require.Zero(t, idle.Checksum)
}
