// Package game provides the simulation context object passed by reference
// into every system, behavior action, and ability. It replaces the global
// singleton the client engine grew up with: one Game per session, disposed
// with it.
package game

import (
	"fmt"

	"warbound/server/internal/content"
	"warbound/server/internal/ecs"
	"warbound/server/internal/sched"
	"warbound/server/internal/telemetry"
)

// State carries the per-tick timing facts visible to content code.
type State struct {
	// Now is the current simulation time in seconds, monotonic within a run.
	Now float64
	// DeltaTime is the fixed seconds elapsed since the previous tick.
	DeltaTime float64
	// Tick counts completed fixed steps since Start.
	Tick uint64
}

// ServiceFunc is a late-bound collaborator call. Services run synchronously
// within the tick.
type ServiceFunc func(args ...any) (any, error)

// Config bundles the dependencies required to assemble a Game.
type Config struct {
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics
	Collections *content.Collections
	Seed        uint64
}

// Game is the explicit context every system and behavior node receives.
type Game struct {
	State State

	registry    *ecs.Registry
	scheduler   *sched.Scheduler
	services    map[string]ServiceFunc
	collections *content.Collections
	rng         *Rand
	seed        uint64
	logger      telemetry.Logger
	metrics     telemetry.Metrics
}

// New assembles a Game and wires the destroy cascade between the registry
// and the scheduler.
func New(cfg Config) *Game {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	g := &Game{
		registry:    ecs.NewRegistry(logger),
		scheduler:   sched.NewScheduler(logger, metrics),
		services:    make(map[string]ServiceFunc),
		collections: cfg.Collections,
		rng:         NewRand(cfg.Seed),
		seed:        cfg.Seed,
		logger:      logger,
		metrics:     metrics,
	}
	// Destroying an entity cancels every scheduled action it owns.
	g.registry.OnDestroy(g.scheduler.CancelOwned)
	return g
}

// Close disposes session-scoped state. Further use of the Game after Close
// is a caller bug.
func (g *Game) Close() {
	if g == nil {
		return
	}
	g.services = make(map[string]ServiceFunc)
}

// Registry exposes the entity registry for subsystems that need to register
// destroy observers.
func (g *Game) Registry() *ecs.Registry { return g.registry }

// Scheduler exposes the scheduling engine for the simulation loop.
func (g *Game) Scheduler() *sched.Scheduler { return g.scheduler }

// Logger exposes the session logger.
func (g *Game) Logger() telemetry.Logger { return g.logger }

// Metrics exposes the session metrics sink.
func (g *Game) Metrics() telemetry.Metrics { return g.metrics }

// CreateEntity allocates a fresh entity.
func (g *Game) CreateEntity() ecs.EntityID { return g.registry.CreateEntity() }

// DestroyEntity removes the entity, cascading scheduled-action cancellation
// and any registered subsystem cleanup.
func (g *Game) DestroyEntity(id ecs.EntityID) { g.registry.DestroyEntity(id) }

// AddComponent attaches data under the component type key.
func (g *Game) AddComponent(id ecs.EntityID, ctype string, data any) {
	g.registry.AddComponent(id, ctype, data)
}

// GetComponent returns the component, or nil and false when absent.
func (g *Game) GetComponent(id ecs.EntityID, ctype string) (any, bool) {
	return g.registry.GetComponent(id, ctype)
}

// HasComponent reports whether the entity carries the component type.
func (g *Game) HasComponent(id ecs.EntityID, ctype string) bool {
	return g.registry.HasComponent(id, ctype)
}

// RemoveComponent detaches the component type from the entity.
func (g *Game) RemoveComponent(id ecs.EntityID, ctype string) {
	g.registry.RemoveComponent(id, ctype)
}

// EntitiesWith returns the entities carrying all listed component types in
// deterministic (ascending id) order.
func (g *Game) EntitiesWith(types ...string) []ecs.EntityID {
	return g.registry.EntitiesWith(types...)
}

// ScheduleAction defers callback by delaySeconds of simulation time. The
// owner links the action to an entity for cascade cancellation.
func (g *Game) ScheduleAction(callback sched.Callback, delaySeconds float64, owner ecs.EntityID) sched.ActionID {
	return g.scheduler.Schedule(g.State.Now, callback, delaySeconds, owner)
}

// CancelAction removes a pending scheduled action. No-op on unknown ids.
func (g *Game) CancelAction(id sched.ActionID) { g.scheduler.Cancel(id) }

// RegisterService installs a named collaborator callable via Call.
// Re-registering a name replaces the previous service.
func (g *Game) RegisterService(name string, fn ServiceFunc) {
	if g == nil || name == "" || fn == nil {
		return
	}
	if _, exists := g.services[name]; exists {
		g.logger.Debugw("service re-registered", "service", name)
	}
	g.services[name] = fn
}

// Call dispatches to a named service. An unknown name is a configuration
// error: logged as a warning and reported to the caller, never fatal.
func (g *Game) Call(name string, args ...any) (any, error) {
	if g == nil {
		return nil, fmt.Errorf("game: nil context")
	}
	fn, ok := g.services[name]
	if !ok {
		g.logger.Warnw("call to unknown service", "service", name)
		return nil, fmt.Errorf("game: unknown service %q", name)
	}
	return fn(args...)
}

// Collections returns the static content definitions loaded at startup.
func (g *Game) Collections() *content.Collections { return g.collections }
