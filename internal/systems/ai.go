package systems

import (
	"math"
	"sort"

	"warbound/server/internal/behavior"
	"warbound/server/internal/ecs"
	"warbound/server/internal/game"
	"warbound/server/internal/telemetry"
)

const (
	lowHealthRatio = 0.35
	wanderRadius   = 120.0
	retreatStep    = 100.0
	safeDistance   = 260.0
	followDistance = 40.0
	guardRadius    = 180.0
)

// AISystem evaluates each brain-carrying entity's behavior tree once per
// tick, in entity-id order. All unit decision making funnels through here;
// the leaves only write orders (movement targets, combat targets, casts)
// that the other systems execute.
type AISystem struct {
	engine *behavior.Engine
	logger telemetry.Logger
}

// NewAISystem wires the behavior engine into the game: leaf actions are
// registered on the engine and entity destruction purges tree state.
func NewAISystem(g *game.Game, engine *behavior.Engine, logger telemetry.Logger) *AISystem {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	s := &AISystem{engine: engine, logger: logger}
	g.Registry().OnDestroy(engine.ClearEntity)
	s.registerActions()
	return s
}

// Name implements sim.System.
func (s *AISystem) Name() string { return "ai" }

// Update implements sim.System.
func (s *AISystem) Update(g *game.Game, dt float64) {
	for _, id := range g.EntitiesWith(CompBrain) {
		b, ok := brain(g, id)
		if !ok || b.Tree == "" {
			continue
		}
		s.engine.Evaluate(b.Tree, id, g)
	}
}

func (s *AISystem) registerActions() {
	e := s.engine
	e.RegisterAction("acquire-target", actionAcquireTarget)
	e.RegisterAction("in-attack-range", actionInAttackRange)
	e.RegisterAction("attack-target", actionAttackTarget)
	e.RegisterAction("move-to-target", actionMoveToTarget)
	e.RegisterAction("low-health", actionLowHealth)
	e.RegisterAction("retreat", actionRetreat)
	e.RegisterAction("wander", actionWander)
	e.RegisterAction("hold-position", actionHoldPosition)
	e.RegisterAction("cast-fireball", castAction("fireball"))
	e.RegisterAction("cast-immolate", castAction("immolate"))
	e.RegisterAction("heal-most-wounded-ally", actionHealMostWounded)
	e.RegisterAction("follow-ally", actionFollowAlly)
	e.RegisterAction("watch-for-threats", actionWatchForThreats)
}

func succeeded(action string) *behavior.Result {
	return &behavior.Result{Action: action, Status: behavior.StatusSuccess}
}

func running(action string) *behavior.Result {
	return &behavior.Result{Action: action, Status: behavior.StatusRunning}
}

func actionAcquireTarget(id ecs.EntityID, g *game.Game) *behavior.Result {
	c, ok := combat(g, id)
	if !ok {
		return nil
	}
	if c.Target != 0 && g.Registry().Alive(c.Target) {
		return succeeded("acquire-target")
	}
	c.Target = AcquireTarget(g, id)
	if c.Target == 0 {
		return nil
	}
	return succeeded("acquire-target")
}

func attackContext(id ecs.EntityID, g *game.Game) (c *Combat, self, victim *Position, rangeLimit, cooldown float64, ok bool) {
	c, okc := combat(g, id)
	if !okc || c.Target == 0 || !g.Registry().Alive(c.Target) {
		return nil, nil, nil, 0, 0, false
	}
	self, oks := position(g, id)
	victim, okv := position(g, c.Target)
	defID, okd := unitDef(g, id)
	if !oks || !okv || !okd {
		return nil, nil, nil, 0, 0, false
	}
	def, okDef := g.Collections().Units[defID]
	if !okDef {
		return nil, nil, nil, 0, 0, false
	}
	return c, self, victim, def.AttackRange, def.AttackCooldown, true
}

func actionInAttackRange(id ecs.EntityID, g *game.Game) *behavior.Result {
	_, self, victim, rangeLimit, _, ok := attackContext(id, g)
	if !ok || distance(self, victim) > rangeLimit {
		return nil
	}
	return succeeded("in-attack-range")
}

// actionAttackTarget reports success when the swing gate is open this tick
// (the combat system performs the actual swing) and running while the unit
// stands in range cooling down.
func actionAttackTarget(id ecs.EntityID, g *game.Game) *behavior.Result {
	c, self, victim, rangeLimit, cooldown, ok := attackContext(id, g)
	if !ok || distance(self, victim) > rangeLimit {
		return nil
	}
	if move, okm := movement(g, id); okm {
		move.Active = false
	}
	if c.LastAttack > 0 && g.State.Now-c.LastAttack < cooldown {
		return running("attack-target")
	}
	return succeeded("attack-target")
}

func actionMoveToTarget(id ecs.EntityID, g *game.Game) *behavior.Result {
	_, self, victim, rangeLimit, _, ok := attackContext(id, g)
	if !ok {
		return nil
	}
	move, okm := movement(g, id)
	if !okm {
		return nil
	}
	if distance(self, victim) <= rangeLimit {
		move.Active = false
		return succeeded("move-to-target")
	}
	move.TargetX = victim.X
	move.TargetY = victim.Y
	move.Active = true
	return running("move-to-target")
}

func actionLowHealth(id ecs.EntityID, g *game.Game) *behavior.Result {
	h, ok := health(g, id)
	if !ok || h.Max <= 0 {
		return nil
	}
	if h.Current/h.Max > lowHealthRatio {
		return nil
	}
	return succeeded("low-health")
}

func actionRetreat(id ecs.EntityID, g *game.Game) *behavior.Result {
	self, ok := position(g, id)
	if !ok {
		return nil
	}
	threat := nearestEnemy(g, id, safeDistance)
	if threat == 0 {
		if move, okm := movement(g, id); okm {
			move.Active = false
		}
		return succeeded("retreat")
	}
	threatPos, ok := position(g, threat)
	if !ok {
		return nil
	}
	move, okm := movement(g, id)
	if !okm {
		return nil
	}
	dx, dy := self.X-threatPos.X, self.Y-threatPos.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		// Stacked exactly on the threat: pick a stable direction.
		dx, dy, length = 1, 0, 1
	}
	move.TargetX = self.X + dx/length*retreatStep
	move.TargetY = self.Y + dy/length*retreatStep
	move.Active = true
	if c, okc := combat(g, id); okc {
		c.Target = 0
	}
	return running("retreat")
}

func actionWander(id ecs.EntityID, g *game.Game) *behavior.Result {
	b, ok := brain(g, id)
	if !ok {
		return nil
	}
	self, okp := position(g, id)
	move, okm := movement(g, id)
	if !okp || !okm {
		return nil
	}
	if b.HasWander {
		if !move.Active {
			b.HasWander = false
			return succeeded("wander")
		}
		return running("wander")
	}
	rng := g.EntityRand(id)
	angle := rng.Angle()
	radius := rng.Range(1, wanderRadius)
	b.WanderX = self.X + math.Cos(angle)*radius
	b.WanderY = self.Y + math.Sin(angle)*radius
	b.HasWander = true
	move.TargetX = b.WanderX
	move.TargetY = b.WanderY
	move.Active = true
	return running("wander")
}

func actionHoldPosition(id ecs.EntityID, g *game.Game) *behavior.Result {
	if move, ok := movement(g, id); ok {
		move.Active = false
	}
	return succeeded("hold-position")
}

// castAction wraps an ability id as a leaf that casts at the current combat
// target through the late-bound ability service.
func castAction(abilityID string) behavior.ActionFunc {
	return func(id ecs.EntityID, g *game.Game) *behavior.Result {
		c, ok := combat(g, id)
		if !ok || c.Target == 0 || !g.Registry().Alive(c.Target) {
			return nil
		}
		if _, err := g.Call("ability.cast", id, abilityID, c.Target); err != nil {
			return nil
		}
		return succeeded("cast-" + abilityID)
	}
}

func actionHealMostWounded(id ecs.EntityID, g *game.Game) *behavior.Result {
	ownTeam, ok := team(g, id)
	if !ok {
		return nil
	}
	type wounded struct {
		id    ecs.EntityID
		ratio float64
	}
	var candidates []wounded
	for _, other := range g.EntitiesWith(CompHealth, CompTeam) {
		otherTeam, okt := team(g, other)
		if !okt || otherTeam != ownTeam || other == id {
			continue
		}
		h, okh := health(g, other)
		if !okh || h.Max <= 0 || h.Current >= h.Max {
			continue
		}
		candidates = append(candidates, wounded{id: other, ratio: h.Current / h.Max})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ratio != candidates[j].ratio {
			return candidates[i].ratio < candidates[j].ratio
		}
		return candidates[i].id < candidates[j].id
	})
	if _, err := g.Call("ability.cast", id, "mend", candidates[0].id); err != nil {
		return nil
	}
	return succeeded("heal-most-wounded-ally")
}

func actionFollowAlly(id ecs.EntityID, g *game.Game) *behavior.Result {
	b, ok := brain(g, id)
	if !ok {
		return nil
	}
	if b.GuardAlly == 0 || !g.Registry().Alive(b.GuardAlly) {
		b.GuardAlly = nearestAlly(g, id)
	}
	if b.GuardAlly == 0 {
		return nil
	}
	self, oks := position(g, id)
	allyPos, oka := position(g, b.GuardAlly)
	move, okm := movement(g, id)
	if !oks || !oka || !okm {
		return nil
	}
	if distance(self, allyPos) <= followDistance {
		move.Active = false
		return succeeded("follow-ally")
	}
	move.TargetX = allyPos.X
	move.TargetY = allyPos.Y
	move.Active = true
	return running("follow-ally")
}

// actionWatchForThreats succeeds when an enemy closes on the guarded ally
// (and locks it as the combat target); otherwise it keeps watching.
func actionWatchForThreats(id ecs.EntityID, g *game.Game) *behavior.Result {
	b, ok := brain(g, id)
	if !ok {
		return nil
	}
	watchFrom := id
	if b.GuardAlly != 0 && g.Registry().Alive(b.GuardAlly) {
		watchFrom = b.GuardAlly
	}
	threat := nearestEnemy(g, watchFrom, guardRadius)
	if threat == 0 {
		return running("watch-for-threats")
	}
	if c, okc := combat(g, id); okc {
		c.Target = threat
	}
	return succeeded("watch-for-threats")
}

// nearestEnemy returns the closest enemy of the entity within radius,
// lowest id on equal distance. Zero when none.
func nearestEnemy(g *game.Game, id ecs.EntityID, radius float64) ecs.EntityID {
	self, ok := position(g, id)
	if !ok {
		return 0
	}
	ownTeam, ok := team(g, id)
	if !ok {
		return 0
	}
	best := ecs.EntityID(0)
	bestDist := radius
	for _, other := range g.EntitiesWith(CompPosition, CompHealth, CompTeam) {
		if other == id {
			continue
		}
		otherTeam, okt := team(g, other)
		if !okt || otherTeam == ownTeam {
			continue
		}
		pos, okp := position(g, other)
		if !okp {
			continue
		}
		d := distance(self, pos)
		if d < bestDist || (d == bestDist && best != 0 && other < best) {
			best = other
			bestDist = d
		}
	}
	return best
}

func nearestAlly(g *game.Game, id ecs.EntityID) ecs.EntityID {
	self, ok := position(g, id)
	if !ok {
		return 0
	}
	ownTeam, ok := team(g, id)
	if !ok {
		return 0
	}
	best := ecs.EntityID(0)
	bestDist := math.Inf(1)
	for _, other := range g.EntitiesWith(CompPosition, CompHealth, CompTeam) {
		if other == id {
			continue
		}
		otherTeam, okt := team(g, other)
		if !okt || otherTeam != ownTeam {
			continue
		}
		pos, okp := position(g, other)
		if !okp {
			continue
		}
		d := distance(self, pos)
		if d < bestDist || (d == bestDist && best != 0 && other < best) {
			best = other
			bestDist = d
		}
	}
	return best
}
