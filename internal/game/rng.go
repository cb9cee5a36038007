package game

import (
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"warbound/server/internal/ecs"
)

// Rand is the seedable deterministic random source owned by the simulation
// core. Content must consume this instead of hand-rolling entity-id-seeded
// formulas or reaching for the global math/rand state.
type Rand struct {
	src *rand.Rand
}

// NewRand constructs a deterministic source from the seed.
func NewRand(seed uint64) *Rand {
	return &Rand{src: rand.New(rand.NewSource(int64(seed)))}
}

// SeedFromString hashes a human-readable seed (room id, config string) into
// a numeric seed.
func SeedFromString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	if r == nil {
		return 0
	}
	return r.src.Float64()
}

// IntN returns a value in [0, n). n must be positive.
func (r *Rand) IntN(n int) int {
	if r == nil || n <= 0 {
		return 0
	}
	return r.src.Intn(n)
}

// Range returns a value in [min, max).
func (r *Rand) Range(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + r.Float64()*(max-min)
}

// Angle returns a value in [0, 2π).
func (r *Rand) Angle() float64 {
	return r.Float64() * 2 * math.Pi
}

// Shuffle performs a Fisher-Yates permutation over n elements.
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	if r == nil || n < 2 || swap == nil {
		return
	}
	r.src.Shuffle(n, swap)
}

// Rand returns the session-scoped random stream. Draw order matters: only
// deterministic tick code may consume it.
func (g *Game) Rand() *Rand { return g.rng }

// EntityRand derives an independent stream seeded from the session seed,
// the entity id, and the current tick. Content that needs per-entity
// randomness without perturbing the session stream uses this.
func (g *Game) EntityRand(id ecs.EntityID) *Rand {
	return NewRand(mix(g.seed, uint64(id), g.State.Tick))
}

// mix folds the inputs through splitmix64 so nearby seeds produce unrelated
// streams.
func mix(values ...uint64) uint64 {
	acc := uint64(0x9e3779b97f4a7c15)
	for _, value := range values {
		acc ^= value + 0x9e3779b97f4a7c15 + (acc << 6) + (acc >> 2)
		acc = splitmix64(acc)
	}
	return acc
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
