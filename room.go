// Package server owns the room hub: the authoritative simulations, their
// websocket subscribers, and the state broadcast that keeps lockstep
// clients honest.
package server

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"warbound/server/internal/behavior"
	"warbound/server/internal/config"
	"warbound/server/internal/content"
	"warbound/server/internal/game"
	"warbound/server/internal/sim"
	"warbound/server/internal/systems"
	"warbound/server/internal/telemetry"
)

const broadcastDropsMetricKey = "hub_broadcast_drops_total"

// subscriber is one websocket attachment to a room. Writes are serialized
// per connection; gorilla conns do not allow concurrent writers.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Write sends one frame, serialized against concurrent broadcasters.
func (s *subscriber) Write(messageType int, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, payload)
}

// Room is one authoritative simulation with its subscribers. The loop runs
// on its own goroutine; everything shared with transport goroutines goes
// through the loop's command queue or the room mutex.
type Room struct {
	id   string
	seed uint64

	game   *game.Game
	engine *behavior.Engine
	loop   *sim.Loop

	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu           sync.Mutex
	sessions     map[string]struct{}
	subscribers  map[string]*subscriber
	lastTick     uint64
	lastState    sim.Snapshot
	lastChecksum uint64
	stop         chan struct{}
	closed       bool
}

type roomConfig struct {
	id          string
	seed        uint64
	sim         config.SimConfig
	collections *content.Collections
	clock       telemetry.Clock
	logger      telemetry.Logger
	metrics     telemetry.Metrics
}

// newRoom assembles the full per-room stack: game context, behavior
// engine with the embedded trees, the fixed-order systems, and the paced
// loop. The room is inert until Run is called.
func newRoom(cfg roomConfig) (*Room, error) {
	if cfg.logger == nil {
		cfg.logger = telemetry.NopLogger{}
	}
	if cfg.metrics == nil {
		cfg.metrics = telemetry.NopMetrics{}
	}
	g := game.New(game.Config{
		Logger:      cfg.logger,
		Metrics:     cfg.metrics,
		Collections: cfg.collections,
		Seed:        cfg.seed,
	})
	engine := behavior.NewEngine(game.NewRand(cfg.seed), cfg.logger)
	if err := engine.LoadEmbedded(); err != nil {
		return nil, fmt.Errorf("server: room %s: %w", cfg.id, err)
	}
	systems.RegisterServices(g)

	room := &Room{
		id:          cfg.id,
		seed:        cfg.seed,
		game:        g,
		engine:      engine,
		logger:      cfg.logger,
		metrics:     cfg.metrics,
		sessions:    make(map[string]struct{}),
		subscribers: make(map[string]*subscriber),
		stop:        make(chan struct{}),
	}

	runner := sim.NewRunner(g, cfg.sim.TickStep(), cfg.logger, cfg.metrics)
	runner.AddSystem(systems.NewMovementSystem())
	runner.AddSystem(systems.NewCombatSystem())
	runner.AddSystem(systems.NewHealthSystem(cfg.logger, cfg.metrics))
	runner.AddSystem(systems.NewAISystem(g, engine, cfg.logger))

	applier := systems.NewCommandApplier(g, cfg.logger, cfg.metrics)
	loopCfg := sim.LoopConfig{
		TickRate:        cfg.sim.TickRate,
		CatchupMaxTicks: cfg.sim.CatchupMaxTicks,
		CommandCapacity: cfg.sim.CommandCapacity,
		PerActorLimit:   cfg.sim.PerActorLimit,
		WarningStep:     cfg.sim.QueueWarningStep,
	}
	hooks := sim.Hooks{
		AfterStep: room.afterStep,
		OnQueueWarning: func(length int) {
			cfg.logger.Warnw("command queue growing", "room", cfg.id, "length", length)
		},
	}
	room.loop = sim.NewLoop(runner, applier, loopCfg, hooks, cfg.clock, cfg.logger, cfg.metrics)
	return room, nil
}

// ID returns the room's public identifier.
func (r *Room) ID() string { return r.id }

// Seed returns the lockstep seed clients replay with.
func (r *Room) Seed() uint64 { return r.seed }

// Run drives the room's loop until Close.
func (r *Room) Run() { r.loop.Run(r.stop) }

// Close stops the loop and drops every subscriber.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stop)
	subs := r.subscribers
	r.subscribers = make(map[string]*subscriber)
	r.mu.Unlock()

	for _, sub := range subs {
		sub.conn.Close()
	}
	r.game.Close()
}

// join issues a session id for a future websocket attachment and returns
// the latest authoritative view.
func (r *Room) join(sessionID string) JoinResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = struct{}{}
	return JoinResponse{
		RoomID:    r.id,
		SessionID: sessionID,
		Seed:      r.seed,
		TickRate:  r.loopTickRate(),
		Tick:      r.lastTick,
		Snapshot:  r.lastState,
	}
}

func (r *Room) loopTickRate() int {
	step := r.loop.Runner().TickStep()
	if step <= 0 {
		return 0
	}
	return int(1.0/step + 0.5)
}

// Subscribe attaches a websocket connection to a joined session. A second
// connection for the same session replaces the first.
func (r *Room) Subscribe(sessionID string, conn *websocket.Conn) (*subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("server: room %s is closed", r.id)
	}
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("server: unknown session %s", sessionID)
	}
	if existing, ok := r.subscribers[sessionID]; ok {
		existing.conn.Close()
	}
	sub := &subscriber{conn: conn}
	r.subscribers[sessionID] = sub
	return sub, nil
}

// Unsubscribe detaches a session's connection. The session stays joined;
// a reconnect is a fresh Subscribe.
func (r *Room) Unsubscribe(sessionID string) {
	r.mu.Lock()
	sub, ok := r.subscribers[sessionID]
	if ok {
		delete(r.subscribers, sessionID)
	}
	r.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
}

// Enqueue stages a command from a transport goroutine.
func (r *Room) Enqueue(cmd sim.Command) (bool, string) {
	return r.loop.Enqueue(cmd)
}

// VerifyAck compares a client-reported checksum against the authoritative
// one for the most recently broadcast tick. Stale acks (a different tick)
// cannot be compared and pass.
func (r *Room) VerifyAck(tick, checksum uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tick != r.lastTick {
		return true
	}
	return checksum == r.lastChecksum
}

// Info returns the diagnostics view. Counts come from the broadcast cache
// so diagnostics never touch the live registry from outside the loop.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:          r.id,
		Seed:        r.seed,
		Tick:        r.lastTick,
		Entities:    len(r.lastState.Entities),
		Subscribers: len(r.subscribers),
		Pending:     r.loop.Pending(),
	}
}

// afterStep runs on the loop goroutine after each batch of ticks and
// broadcasts the authoritative state.
func (r *Room) afterStep(result sim.StepResult) {
	if result.Ticks == 0 {
		return
	}
	message := stateMessage{
		Type:     msgTypeState,
		Tick:     result.Tick,
		Now:      result.SimTime,
		Checksum: result.Checksum,
		Snapshot: result.Snapshot,
	}
	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Errorw("marshal state broadcast", "room", r.id, "tick", result.Tick, "error", err)
		return
	}

	r.mu.Lock()
	r.lastTick = result.Tick
	r.lastState = result.Snapshot
	r.lastChecksum = result.Checksum
	subs := make(map[string]*subscriber, len(r.subscribers))
	for id, sub := range r.subscribers {
		subs[id] = sub
	}
	r.mu.Unlock()

	for sessionID, sub := range subs {
		if err := sub.Write(websocket.TextMessage, payload); err != nil {
			r.metrics.Add(broadcastDropsMetricKey, 1)
			r.logger.Infow("dropping subscriber", "room", r.id, "session", sessionID, "error", err)
			r.Unsubscribe(sessionID)
		}
	}
}
