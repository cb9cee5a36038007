package behavior

import (
	"sort"

	"warbound/server/internal/ecs"
	"warbound/server/internal/game"
)

// ActionFunc is the body of a leaf node.
type ActionFunc func(id ecs.EntityID, g *game.Game) *Result

// Action is a leaf node: a named, stateless action body. Multi-tick work
// reports StatusRunning and stashes its own resume data in the entity's
// aiState component, never on the node.
type Action struct {
	Name string
	Run  ActionFunc
}

// Execute implements Executer.
func (a *Action) Execute(id ecs.EntityID, g *game.Game) *Result {
	if a == nil || a.Run == nil {
		return nil
	}
	return a.Run(id, g)
}

// Selector evaluates children in priority order and returns the first
// non-failure result. A running child is resumed at its recorded index on
// the next tick so earlier, lower-priority children are not re-triggered
// every tick.
type Selector struct {
	Name     string
	Children []string

	engine *Engine
}

func (s *Selector) bind(e *Engine) { s.engine = e }

// Evaluate implements Evaluator.
func (s *Selector) Evaluate(id ecs.EntityID, g *game.Game) *Result {
	if s == nil || s.engine == nil {
		return nil
	}
	start := 0
	if marker, ok := s.engine.selectorMarkerFor(s.Name, id); ok {
		// A hot-reloaded config may have removed the running child; fall
		// back to the top rather than resuming a stale index.
		if marker.Index < len(s.Children) && s.Children[marker.Index] == marker.Action {
			start = marker.Index
		} else {
			s.engine.clearSelectorMarker(s.Name, id)
		}
	}
	for i := start; i < len(s.Children); i++ {
		result := s.engine.dispatch(s.Children[i], id, g)
		if result.Failed() {
			continue
		}
		if result.Running() {
			s.engine.setSelectorMarker(s.Name, id, selectorMarker{Index: i, Action: s.Children[i]})
			return result
		}
		s.engine.clearSelectorMarker(s.Name, id)
		return result
	}
	s.engine.clearSelectorMarker(s.Name, id)
	return nil
}

// Sequence evaluates children in order. Any failing child aborts with
// failure; a running child suspends the sequence; all children succeeding
// returns the last child's result.
type Sequence struct {
	Name     string
	Children []string

	engine *Engine
}

func (s *Sequence) bind(e *Engine) { s.engine = e }

// Evaluate implements Evaluator.
func (s *Sequence) Evaluate(id ecs.EntityID, g *game.Game) *Result {
	if s == nil || s.engine == nil {
		return nil
	}
	var last *Result
	for _, child := range s.Children {
		result := s.engine.dispatch(child, id, g)
		if result.Failed() {
			return nil
		}
		if result.Running() {
			return result
		}
		last = result
	}
	return last
}

// Parallel evaluates every child each tick with no short-circuit, then
// synthesizes one result from the configured policies. Policy values are
// "any" or "all".
type Parallel struct {
	Name          string
	Children      []string
	SuccessPolicy string
	FailurePolicy string

	engine *Engine
}

func (p *Parallel) bind(e *Engine) { p.engine = e }

// Evaluate implements Evaluator.
func (p *Parallel) Evaluate(id ecs.EntityID, g *game.Game) *Result {
	if p == nil || p.engine == nil {
		return nil
	}
	successes := 0
	failures := 0
	running := make([]string, 0, len(p.Children))
	for _, child := range p.Children {
		result := p.engine.dispatch(child, id, g)
		switch {
		case result.Failed():
			failures++
		case result.Running():
			running = append(running, child)
		default:
			successes++
		}
	}

	// Failure dominates: an any-failure policy decides immediately even
	// when other children are still running.
	failed := false
	switch p.FailurePolicy {
	case "all":
		failed = failures == len(p.Children)
	default: // "any"
		failed = failures > 0
	}
	if failed {
		p.engine.clearParallelRunning(p.Name, id)
		return nil
	}

	succeeded := false
	switch p.SuccessPolicy {
	case "any":
		succeeded = successes > 0
	default: // "all"
		succeeded = successes == len(p.Children)
	}
	if succeeded {
		p.engine.clearParallelRunning(p.Name, id)
		return &Result{Action: p.Name, Status: StatusSuccess}
	}

	if len(running) > 0 {
		sort.Strings(running)
		stillRunning := make(map[string]struct{}, len(running))
		for _, child := range running {
			stillRunning[child] = struct{}{}
		}
		p.engine.setParallelRunning(p.Name, id, stillRunning)
		return &Result{
			Action: p.Name,
			Status: StatusRunning,
			Meta:   map[string]any{"running": running},
		}
	}

	// Neither policy decided and nothing is running: the tick ends
	// undecided, which counts as failure.
	p.engine.clearParallelRunning(p.Name, id)
	return nil
}

// RandomSelector shuffles its children with the engine's seeded stream and
// evaluates in that order until one succeeds. While a child is running the
// recorded order and position are resumed, never re-shuffled. Sticky mode
// pins the last successful child to the front of the next shuffle.
type RandomSelector struct {
	Name     string
	Children []string
	Sticky   bool

	engine *Engine
}

func (r *RandomSelector) bind(e *Engine) { r.engine = e }

// Evaluate implements Evaluator.
func (r *RandomSelector) Evaluate(id ecs.EntityID, g *game.Game) *Result {
	if r == nil || r.engine == nil {
		return nil
	}
	marker := r.engine.shuffleMarkerFor(r.Name, id)
	if marker != nil && !orderMatchesChildren(marker.Order, r.Children) {
		// Hot-reloaded child list invalidates the persisted order.
		r.engine.clearShuffleMarker(r.Name, id)
		marker = nil
	}
	if marker == nil {
		order := append([]string(nil), r.Children...)
		r.engine.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		if r.Sticky {
			if last, ok := r.engine.stickyFor(r.Name, id); ok {
				pinFront(order, last)
			}
		}
		marker = &shuffleMarker{Order: order}
	}

	for i := marker.Index; i < len(marker.Order); i++ {
		result := r.engine.dispatch(marker.Order[i], id, g)
		if result.Failed() {
			continue
		}
		if result.Running() {
			marker.Index = i
			r.engine.setShuffleMarker(r.Name, id, marker)
			return result
		}
		r.engine.clearShuffleMarker(r.Name, id)
		if r.Sticky {
			r.engine.setSticky(r.Name, id, marker.Order[i])
		}
		return result
	}
	r.engine.clearShuffleMarker(r.Name, id)
	return nil
}

// orderMatchesChildren reports whether a persisted shuffle still covers
// exactly the current child set.
func orderMatchesChildren(order, children []string) bool {
	if len(order) != len(children) {
		return false
	}
	present := make(map[string]struct{}, len(children))
	for _, child := range children {
		present[child] = struct{}{}
	}
	for _, name := range order {
		if _, ok := present[name]; !ok {
			return false
		}
	}
	return true
}

func pinFront(order []string, name string) {
	for i, candidate := range order {
		if candidate == name {
			copy(order[1:i+1], order[:i])
			order[0] = name
			return
		}
	}
}

// Decorator transform identifiers.
const (
	// TransformInvert swaps success and failure; running passes through.
	TransformInvert = "invert"
	// TransformAlwaysSucceed maps failure to success; running passes
	// through.
	TransformAlwaysSucceed = "always-succeed"
)

// Decorator wraps one child and transforms its result.
type Decorator struct {
	Name      string
	Child     string
	Transform string

	engine *Engine
}

func (d *Decorator) bind(e *Engine) { d.engine = e }

// Evaluate implements Evaluator.
func (d *Decorator) Evaluate(id ecs.EntityID, g *game.Game) *Result {
	if d == nil || d.engine == nil {
		return nil
	}
	result := d.engine.dispatch(d.Child, id, g)
	switch d.Transform {
	case TransformInvert:
		if result.Running() {
			return result
		}
		if result.Failed() {
			return &Result{Action: d.Name, Status: StatusSuccess}
		}
		return nil
	case TransformAlwaysSucceed:
		if result.Running() {
			return result
		}
		if result.Failed() {
			return &Result{Action: d.Name, Status: StatusSuccess}
		}
		return result
	default:
		d.engine.logger.Warnw("unknown decorator transform", "node", d.Name, "transform", d.Transform)
		return nil
	}
}
