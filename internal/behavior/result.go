// Package behavior implements the composable decision-tree engine driving
// unit AI. Nodes are stateless templates shared across every entity; the
// per-entity mutable state (resume indexes, running sets, shuffle orders)
// lives in side tables owned by the engine, which is what lets one tree
// instance drive many units.
package behavior

// Status is the outcome of a node evaluation.
type Status string

const (
	// StatusSuccess marks a completed, successful evaluation.
	StatusSuccess Status = "success"
	// StatusFailure marks a completed, failed evaluation. A nil Result is
	// shorthand for failure.
	StatusFailure Status = "failure"
	// StatusRunning marks a multi-tick action that must be resumed on the
	// next evaluation. Running results always have persisted resume state.
	StatusRunning Status = "running"
)

// Result is the value produced by a node evaluation. Nil means failure.
type Result struct {
	// Action names the leaf or composite that produced the result.
	Action string
	// Status is the evaluation outcome.
	Status Status
	// Meta carries node-specific payload, e.g. the still-running child set
	// of a parallel node.
	Meta map[string]any
}

// Succeeded reports whether the result is a non-nil success.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// Running reports whether the result is a non-nil running marker.
func (r *Result) Running() bool {
	return r != nil && r.Status == StatusRunning
}

// Failed reports whether the result is nil or an explicit failure.
func (r *Result) Failed() bool {
	return r == nil || r.Status == StatusFailure
}
