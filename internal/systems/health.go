package systems

import (
	"warbound/server/internal/game"
	"warbound/server/internal/telemetry"
)

const (
	deathsMetricKey = "systems_deaths_total"
)

// HealthSystem is the single writer of Health.Current. It drains every
// damage inbox in entity-id order, clamps the pool, and destroys entities
// that reach zero. Destruction cascades: scheduled actions owned by the
// entity are cancelled and behavior state is purged via registry observers.
type HealthSystem struct {
	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// NewHealthSystem constructs the health system.
func NewHealthSystem(logger telemetry.Logger, metrics telemetry.Metrics) *HealthSystem {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	return &HealthSystem{logger: logger, metrics: metrics}
}

// Name implements sim.System.
func (s *HealthSystem) Name() string { return "health" }

// Update implements sim.System.
func (s *HealthSystem) Update(g *game.Game, dt float64) {
	ids := g.EntitiesWith(CompHealth, CompInbox)
	for _, id := range ids {
		h, ok := health(g, id)
		if !ok {
			continue
		}
		in, ok := inbox(g, id)
		if !ok || len(in.Events) == 0 {
			continue
		}
		for _, event := range in.Events {
			h.Current -= event.Amount
		}
		in.Events = in.Events[:0]
		if h.Current > h.Max {
			h.Current = h.Max
		}
		if h.Current <= 0 {
			s.metrics.Add(deathsMetricKey, 1)
			s.logger.Debugw("entity died", "entity", id, "tick", g.State.Tick)
			g.DestroyEntity(id)
		}
	}
}
