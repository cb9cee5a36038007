package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	t.Run("nil receiver", func(t *testing.T) {
		var c *Counters
		c.Add("ticks", 1)
		c.Store("ticks", 5)
		require.Zero(t, c.Value("ticks"))
	})

	t.Run("add and store", func(t *testing.T) {
		c := NewCounters()
		c.Add("ticks", 2)
		c.Add("ticks", 3)
		require.Equal(t, uint64(5), c.Value("ticks"))

		c.Store("ticks", 1)
		require.Equal(t, uint64(1), c.Value("ticks"))
	})

	t.Run("snapshot copies", func(t *testing.T) {
		c := NewCounters()
		c.Add("a", 1)
		snap := c.Snapshot()
		snap["a"] = 99
		require.Equal(t, uint64(1), c.Value("a"))
	})
}

func TestManualClock(t *testing.T) {
	start := time.Unix(0, 0).UTC()
	clock := NewManualClock(start)
	require.Equal(t, start, clock.Now())

	clock.Advance(250 * time.Millisecond)
	require.Equal(t, start.Add(250*time.Millisecond), clock.Now())
}
