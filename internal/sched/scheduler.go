// Package sched implements the deferred action queue driven by simulation
// time. It is the deterministic replacement for wall-clock timers: the same
// sequence of Schedule calls against the same sequence of Tick calls fires
// callbacks in the same order on every host.
package sched

import (
	"container/heap"

	"warbound/server/internal/ecs"
	"warbound/server/internal/telemetry"
)

const (
	firedMetricKey     = "sched_actions_fired_total"
	panicMetricKey     = "sched_callback_panics_total"
	cancelledMetricKey = "sched_actions_cancelled_total"
)

// ActionID identifies a pending scheduled action. Zero is never issued.
type ActionID uint64

// tickFireBudget caps callback firings within one Tick call. A callback
// chain that keeps scheduling due-now work past the budget is a content
// bug; deferring the remainder keeps the shared tick loop alive instead of
// hanging every room on one runaway action. The budget is a constant, so
// every lockstep peer defers at the same point.
const tickFireBudget = 10000

// Callback is a deferred action body. It runs synchronously inside Tick.
type Callback func()

type entry struct {
	id        ActionID
	fireAt    float64
	seq       uint64
	owner     ecs.EntityID
	callback  Callback
	cancelled bool
}

// Scheduler orders pending actions by (fireAt, insertion sequence). Equal
// fire times resolve FIFO, which the lockstep design depends on.
type Scheduler struct {
	queue   actionHeap
	pending map[ActionID]*entry
	owned   map[ecs.EntityID]map[ActionID]struct{}
	nextID  ActionID
	nextSeq uint64
	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// NewScheduler constructs an empty scheduler. Nil logger/metrics fall back
// to nop implementations.
func NewScheduler(logger telemetry.Logger, metrics telemetry.Metrics) *Scheduler {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &Scheduler{
		pending: make(map[ActionID]*entry),
		owned:   make(map[ecs.EntityID]map[ActionID]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Schedule defers callback to fire once simulation time reaches
// now + delaySeconds. The owner, when non-zero, links the action to an
// entity for bulk cancellation; it never affects fire order. A negative
// delay is a content bug (it would fire "in the past" and break replay),
// so it is logged and clamped to zero.
func (s *Scheduler) Schedule(now float64, callback Callback, delaySeconds float64, owner ecs.EntityID) ActionID {
	if s == nil || callback == nil {
		return 0
	}
	if delaySeconds < 0 {
		s.logger.Warnw("negative schedule delay clamped", "delay", delaySeconds, "owner", owner)
		delaySeconds = 0
	}
	s.nextID++
	s.nextSeq++
	item := &entry{
		id:       s.nextID,
		fireAt:   now + delaySeconds,
		seq:      s.nextSeq,
		owner:    owner,
		callback: callback,
	}
	s.pending[item.id] = item
	heap.Push(&s.queue, item)
	if owner != 0 {
		ids, ok := s.owned[owner]
		if !ok {
			ids = make(map[ActionID]struct{})
			s.owned[owner] = ids
		}
		ids[item.id] = struct{}{}
	}
	return item.id
}

// Cancel removes a pending action. Unknown or already-fired ids are a
// no-op; Cancel never panics.
func (s *Scheduler) Cancel(id ActionID) {
	if s == nil {
		return
	}
	item, ok := s.pending[id]
	if !ok {
		return
	}
	item.cancelled = true
	s.detach(item)
	s.metrics.Add(cancelledMetricKey, 1)
}

// CancelOwned removes every pending action linked to the entity. Wired to
// entity destruction so no callback outlives its owner.
func (s *Scheduler) CancelOwned(owner ecs.EntityID) {
	if s == nil || owner == 0 {
		return
	}
	ids, ok := s.owned[owner]
	if !ok {
		return
	}
	for id := range ids {
		if item, live := s.pending[id]; live {
			item.cancelled = true
			delete(s.pending, id)
			s.metrics.Add(cancelledMetricKey, 1)
		}
	}
	delete(s.owned, owner)
}

// Pending reports the number of actions waiting to fire.
func (s *Scheduler) Pending() int {
	if s == nil {
		return 0
	}
	return len(s.pending)
}

// PendingFor reports the number of pending actions linked to the entity.
func (s *Scheduler) PendingFor(owner ecs.EntityID) int {
	if s == nil {
		return 0
	}
	return len(s.owned[owner])
}

// Tick fires every pending action whose fire time is at or before now, in
// (fireAt, FIFO) order. Callbacks that schedule further actions due now fire
// within the same call, so self-perpetuating chains make progress every
// tick they are due, up to tickFireBudget firings; past the budget the
// remainder is deferred to the next tick with a warning. A panicking callback is
// recovered and logged without aborting the rest of the queue.
func (s *Scheduler) Tick(now float64) int {
	if s == nil {
		return 0
	}
	fired := 0
	for s.queue.Len() > 0 {
		if fired >= tickFireBudget {
			s.logger.Warnw("tick fire budget exhausted, deferring remaining actions",
				"fired", fired,
				"pending", len(s.pending),
				"now", now,
			)
			break
		}
		head := s.queue[0]
		if head.cancelled {
			heap.Pop(&s.queue)
			continue
		}
		if head.fireAt > now {
			break
		}
		heap.Pop(&s.queue)
		s.detach(head)
		s.run(head)
		fired++
	}
	if fired > 0 {
		s.metrics.Add(firedMetricKey, uint64(fired))
	}
	return fired
}

func (s *Scheduler) run(item *entry) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.metrics.Add(panicMetricKey, 1)
			s.logger.Errorw("scheduled action panicked",
				"action", item.id,
				"owner", item.owner,
				"panic", recovered,
			)
		}
	}()
	item.callback()
}

func (s *Scheduler) detach(item *entry) {
	delete(s.pending, item.id)
	if item.owner == 0 {
		return
	}
	if ids, ok := s.owned[item.owner]; ok {
		delete(ids, item.id)
		if len(ids) == 0 {
			delete(s.owned, item.owner)
		}
	}
}

type actionHeap []*entry

func (h actionHeap) Len() int { return len(h) }

func (h actionHeap) Less(i, j int) bool {
	if h[i].fireAt != h[j].fireAt {
		return h[i].fireAt < h[j].fireAt
	}
	return h[i].seq < h[j].seq
}

func (h actionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *actionHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
