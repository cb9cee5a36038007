package behavior

import (
	"time"

	"warbound/server/internal/ecs"
	"warbound/server/internal/game"
	"warbound/server/internal/telemetry"
)

// Executer is the leaf node shape: a single action body.
type Executer interface {
	Execute(id ecs.EntityID, g *game.Game) *Result
}

// Evaluator is the composite/decorator node shape.
type Evaluator interface {
	Evaluate(id ecs.EntityID, g *game.Game) *Result
}

// Tracer observes node visits. It is a debugging side channel and must
// never influence selection; the engine calls it after the outcome is
// already decided.
type Tracer interface {
	Visit(id ecs.EntityID, node string, status Status, elapsed time.Duration)
}

// Engine owns the node registry, the per-entity running-state side tables,
// and the deterministic random stream used by random selectors.
type Engine struct {
	nodes  map[string]any
	rng    *game.Rand
	logger telemetry.Logger
	tracer Tracer
	clock  telemetry.Clock

	selRunning  map[string]map[ecs.EntityID]selectorMarker
	parRunning  map[string]map[ecs.EntityID]map[string]struct{}
	randRunning map[string]map[ecs.EntityID]*shuffleMarker
	randSticky  map[string]map[ecs.EntityID]string
}

// selectorMarker records which child of a selector is mid-run for an
// entity, so the next tick resumes there instead of index 0.
type selectorMarker struct {
	Index  int
	Action string
}

// shuffleMarker pins a random selector's shuffled order while one of its
// children is running.
type shuffleMarker struct {
	Order []string
	Index int
}

// NewEngine constructs an empty engine seeded for deterministic shuffles.
func NewEngine(rng *game.Rand, logger telemetry.Logger) *Engine {
	if rng == nil {
		rng = game.NewRand(0)
	}
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	return &Engine{
		nodes:       make(map[string]any),
		rng:         rng,
		logger:      logger,
		clock:       telemetry.SystemClock{},
		selRunning:  make(map[string]map[ecs.EntityID]selectorMarker),
		parRunning:  make(map[string]map[ecs.EntityID]map[string]struct{}),
		randRunning: make(map[string]map[ecs.EntityID]*shuffleMarker),
		randSticky:  make(map[string]map[ecs.EntityID]string),
	}
}

// SetTracer installs the evaluation observer. Pass nil to disable.
func (e *Engine) SetTracer(tracer Tracer) { e.tracer = tracer }

// Register adds a node under its name. Registering an existing name
// replaces the node; stale running markers referencing removed children are
// discarded lazily at the next evaluation.
func (e *Engine) Register(name string, node any) {
	if e == nil || name == "" || node == nil {
		return
	}
	switch node.(type) {
	case Executer, Evaluator:
	default:
		e.logger.Warnw("node has neither execute nor evaluate shape", "node", name)
		return
	}
	if composite, ok := node.(engineBound); ok {
		composite.bind(e)
	}
	e.nodes[name] = node
}

// RegisterAction wraps a bare function as a leaf node.
func (e *Engine) RegisterAction(name string, run ActionFunc) {
	e.Register(name, &Action{Name: name, Run: run})
}

// Has reports whether a node is registered under the name.
func (e *Engine) Has(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.nodes[name]
	return ok
}

// Evaluate runs the named tree root for the entity. Unknown names are a
// content configuration error: warned and treated as failure.
func (e *Engine) Evaluate(root string, id ecs.EntityID, g *game.Game) *Result {
	return e.dispatch(root, id, g)
}

// dispatch resolves a node by name and runs whichever evaluation shape it
// exposes. Leaf executions are panic-isolated so one broken action degrades
// a single unit instead of the whole tick.
func (e *Engine) dispatch(name string, id ecs.EntityID, g *game.Game) *Result {
	if e == nil {
		return nil
	}
	node, ok := e.nodes[name]
	if !ok {
		e.logger.Warnw("behavior node not registered", "node", name)
		return nil
	}
	started := e.clock.Now()
	var result *Result
	switch n := node.(type) {
	case Executer:
		result = e.executeLeaf(name, n, id, g)
	case Evaluator:
		result = n.Evaluate(id, g)
	default:
		e.logger.Warnw("behavior node has no evaluation shape", "node", name)
	}
	if e.tracer != nil {
		status := StatusFailure
		if result != nil {
			status = result.Status
		}
		e.tracer.Visit(id, name, status, e.clock.Now().Sub(started))
	}
	return result
}

func (e *Engine) executeLeaf(name string, leaf Executer, id ecs.EntityID, g *game.Game) (result *Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Errorw("behavior action panicked", "node", name, "entity", id, "panic", recovered)
			result = nil
		}
	}()
	return leaf.Execute(id, g)
}

// ClearEntity purges every running-state entry for the entity. Wired to
// entity destruction and battle teardown; skipping this leaks markers that
// reference dead entities.
func (e *Engine) ClearEntity(id ecs.EntityID) {
	if e == nil {
		return
	}
	for _, byEntity := range e.selRunning {
		delete(byEntity, id)
	}
	for _, byEntity := range e.parRunning {
		delete(byEntity, id)
	}
	for _, byEntity := range e.randRunning {
		delete(byEntity, id)
	}
	for _, byEntity := range e.randSticky {
		delete(byEntity, id)
	}
}

// Reset drops every per-entity table, for battle/round end.
func (e *Engine) Reset() {
	if e == nil {
		return
	}
	e.selRunning = make(map[string]map[ecs.EntityID]selectorMarker)
	e.parRunning = make(map[string]map[ecs.EntityID]map[string]struct{})
	e.randRunning = make(map[string]map[ecs.EntityID]*shuffleMarker)
	e.randSticky = make(map[string]map[ecs.EntityID]string)
}

// RunningState reports the selector resume marker for a node/entity pair.
// Test hook.
func (e *Engine) RunningState(node string, id ecs.EntityID) (int, string, bool) {
	byEntity, ok := e.selRunning[node]
	if !ok {
		return 0, "", false
	}
	marker, ok := byEntity[id]
	if !ok {
		return 0, "", false
	}
	return marker.Index, marker.Action, true
}

// HasEntityState reports whether any side table still references the
// entity. Test hook for the destruction cascade.
func (e *Engine) HasEntityState(id ecs.EntityID) bool {
	if e == nil {
		return false
	}
	for _, byEntity := range e.selRunning {
		if _, ok := byEntity[id]; ok {
			return true
		}
	}
	for _, byEntity := range e.parRunning {
		if _, ok := byEntity[id]; ok {
			return true
		}
	}
	for _, byEntity := range e.randRunning {
		if _, ok := byEntity[id]; ok {
			return true
		}
	}
	for _, byEntity := range e.randSticky {
		if _, ok := byEntity[id]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) selectorMarkerFor(node string, id ecs.EntityID) (selectorMarker, bool) {
	byEntity, ok := e.selRunning[node]
	if !ok {
		return selectorMarker{}, false
	}
	marker, ok := byEntity[id]
	return marker, ok
}

func (e *Engine) setSelectorMarker(node string, id ecs.EntityID, marker selectorMarker) {
	byEntity, ok := e.selRunning[node]
	if !ok {
		byEntity = make(map[ecs.EntityID]selectorMarker)
		e.selRunning[node] = byEntity
	}
	byEntity[id] = marker
}

func (e *Engine) clearSelectorMarker(node string, id ecs.EntityID) {
	if byEntity, ok := e.selRunning[node]; ok {
		delete(byEntity, id)
	}
}

func (e *Engine) setParallelRunning(node string, id ecs.EntityID, running map[string]struct{}) {
	byEntity, ok := e.parRunning[node]
	if !ok {
		byEntity = make(map[ecs.EntityID]map[string]struct{})
		e.parRunning[node] = byEntity
	}
	byEntity[id] = running
}

func (e *Engine) clearParallelRunning(node string, id ecs.EntityID) {
	if byEntity, ok := e.parRunning[node]; ok {
		delete(byEntity, id)
	}
}

func (e *Engine) shuffleMarkerFor(node string, id ecs.EntityID) *shuffleMarker {
	byEntity, ok := e.randRunning[node]
	if !ok {
		return nil
	}
	return byEntity[id]
}

func (e *Engine) setShuffleMarker(node string, id ecs.EntityID, marker *shuffleMarker) {
	byEntity, ok := e.randRunning[node]
	if !ok {
		byEntity = make(map[ecs.EntityID]*shuffleMarker)
		e.randRunning[node] = byEntity
	}
	byEntity[id] = marker
}

func (e *Engine) clearShuffleMarker(node string, id ecs.EntityID) {
	if byEntity, ok := e.randRunning[node]; ok {
		delete(byEntity, id)
	}
}

func (e *Engine) stickyFor(node string, id ecs.EntityID) (string, bool) {
	byEntity, ok := e.randSticky[node]
	if !ok {
		return "", false
	}
	name, ok := byEntity[id]
	return name, ok
}

func (e *Engine) setSticky(node string, id ecs.EntityID, child string) {
	byEntity, ok := e.randSticky[node]
	if !ok {
		byEntity = make(map[ecs.EntityID]string)
		e.randSticky[node] = byEntity
	}
	byEntity[id] = child
}

// engineBound is implemented by composite nodes that need the engine for
// child dispatch and side-table access.
type engineBound interface {
	bind(*Engine)
}
