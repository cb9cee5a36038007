// Package ecs provides the entity registry and component store backing the
// deterministic simulation. Entities are opaque integer ids; components are
// attribute bags attached under string type keys, at most one per type per
// entity. The registry owns component lifecycle; systems borrow references
// for the duration of a tick and must not retain them across entity
// destruction.
package ecs

import (
	"sort"

	"warbound/server/internal/telemetry"
)

// EntityID identifies a live entity. Zero is never allocated and doubles as
// the "no entity" sentinel.
type EntityID uint64

// DestroyObserver is notified synchronously while an entity is being
// destroyed, before its components detach. Collaborating subsystems register
// observers to cascade cleanup (scheduler cancellation, behavior running
// state, render teardown).
type DestroyObserver func(EntityID)

// Registry allocates entity ids, tracks component attachment, and answers
// indexed queries over component types.
type Registry struct {
	nextID    EntityID
	alive     map[EntityID]struct{}
	store     map[string]map[EntityID]any
	observers []DestroyObserver
	logger    telemetry.Logger
}

// NewRegistry constructs an empty registry. A nil logger falls back to the
// nop implementation.
func NewRegistry(logger telemetry.Logger) *Registry {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	return &Registry{
		alive:  make(map[EntityID]struct{}),
		store:  make(map[string]map[EntityID]any),
		logger: logger,
	}
}

// OnDestroy registers an observer for entity destruction. Observers fire in
// registration order, which must stay fixed for determinism.
func (r *Registry) OnDestroy(observer DestroyObserver) {
	if r == nil || observer == nil {
		return
	}
	r.observers = append(r.observers, observer)
}

// CreateEntity allocates a fresh entity id.
func (r *Registry) CreateEntity() EntityID {
	r.nextID++
	id := r.nextID
	r.alive[id] = struct{}{}
	return id
}

// DestroyEntity removes an entity, notifying observers and detaching every
// component synchronously. Destroying an unknown id is a no-op.
func (r *Registry) DestroyEntity(id EntityID) {
	if r == nil {
		return
	}
	if _, ok := r.alive[id]; !ok {
		return
	}
	// Observers run before detachment so they can still read components.
	for _, observer := range r.observers {
		observer(id)
	}
	for _, byEntity := range r.store {
		delete(byEntity, id)
	}
	delete(r.alive, id)
}

// Alive reports whether the entity exists.
func (r *Registry) Alive(id EntityID) bool {
	if r == nil {
		return false
	}
	_, ok := r.alive[id]
	return ok
}

// Count reports the number of live entities.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	return len(r.alive)
}

// AddComponent attaches data under the component type key, replacing any
// existing instance of that type. Attaching to a dead entity logs a warning
// and is dropped.
func (r *Registry) AddComponent(id EntityID, ctype string, data any) {
	if r == nil || ctype == "" {
		return
	}
	if _, ok := r.alive[id]; !ok {
		r.logger.Warnw("component attach on dead entity", "entity", id, "component", ctype)
		return
	}
	byEntity, ok := r.store[ctype]
	if !ok {
		byEntity = make(map[EntityID]any)
		r.store[ctype] = byEntity
	}
	byEntity[id] = data
}

// GetComponent returns the component of the given type, or nil and false
// when absent. Missing components are a soft failure; callers guard and
// skip rather than crash the tick.
func (r *Registry) GetComponent(id EntityID, ctype string) (any, bool) {
	if r == nil {
		return nil, false
	}
	byEntity, ok := r.store[ctype]
	if !ok {
		return nil, false
	}
	data, ok := byEntity[id]
	return data, ok
}

// HasComponent reports whether the entity carries the component type.
func (r *Registry) HasComponent(id EntityID, ctype string) bool {
	_, ok := r.GetComponent(id, ctype)
	return ok
}

// RemoveComponent detaches the component type from the entity. No-op when
// absent.
func (r *Registry) RemoveComponent(id EntityID, ctype string) {
	if r == nil {
		return
	}
	if byEntity, ok := r.store[ctype]; ok {
		delete(byEntity, id)
	}
}

// EntitiesWith returns every live entity carrying all of the listed
// component types, sorted ascending by id. The ordering is load-bearing:
// systems iterate query results, so it must be identical on every host.
func (r *Registry) EntitiesWith(types ...string) []EntityID {
	if r == nil || len(types) == 0 {
		return nil
	}
	// Walk the smallest index to keep the intersection cheap.
	smallest := -1
	for i, ctype := range types {
		byEntity, ok := r.store[ctype]
		if !ok {
			return nil
		}
		if smallest < 0 || len(byEntity) < len(r.store[types[smallest]]) {
			smallest = i
		}
	}
	candidates := r.store[types[smallest]]
	ids := make([]EntityID, 0, len(candidates))
	for id := range candidates {
		if _, ok := r.alive[id]; !ok {
			continue
		}
		match := true
		for _, ctype := range types {
			if _, ok := r.store[ctype][id]; !ok {
				match = false
				break
			}
		}
		if match {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ComponentTypes returns the sorted component type keys attached to the
// entity. Used by snapshotting, which needs a canonical order.
func (r *Registry) ComponentTypes(id EntityID) []string {
	if r == nil {
		return nil
	}
	types := make([]string, 0, 4)
	for ctype, byEntity := range r.store {
		if _, ok := byEntity[id]; ok {
			types = append(types, ctype)
		}
	}
	sort.Strings(types)
	return types
}

// AllEntities returns every live entity sorted ascending by id.
func (r *Registry) AllEntities() []EntityID {
	if r == nil {
		return nil
	}
	ids := make([]EntityID, 0, len(r.alive))
	for id := range r.alive {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
