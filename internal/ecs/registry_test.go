package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryCreateDestroy(t *testing.T) {
	r := NewRegistry(nil)

	first := r.CreateEntity()
	second := r.CreateEntity()
	require.NotEqual(t, first, second)
	require.True(t, r.Alive(first))
	require.Equal(t, 2, r.Count())

	r.DestroyEntity(first)
	require.False(t, r.Alive(first))
	require.Equal(t, 1, r.Count())

	// Destroying twice is a no-op.
	r.DestroyEntity(first)
	require.Equal(t, 1, r.Count())
}

func TestRegistryComponentLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	id := r.CreateEntity()

	r.AddComponent(id, "position", map[string]float64{"x": 1, "y": 2})
	require.True(t, r.HasComponent(id, "position"))

	// At most one instance per type: a second add replaces the first.
	r.AddComponent(id, "position", map[string]float64{"x": 9, "y": 9})
	data, ok := r.GetComponent(id, "position")
	require.True(t, ok)
	require.Equal(t, 9.0, data.(map[string]float64)["x"])

	r.RemoveComponent(id, "position")
	require.False(t, r.HasComponent(id, "position"))

	_, ok = r.GetComponent(id, "missing")
	require.False(t, ok)
}

func TestRegistryAddToDeadEntityDropped(t *testing.T) {
	r := NewRegistry(nil)
	id := r.CreateEntity()
	r.DestroyEntity(id)

	r.AddComponent(id, "health", 10)
	require.False(t, r.HasComponent(id, "health"))
}

func TestRegistryEntitiesWithSorted(t *testing.T) {
	r := NewRegistry(nil)

	var withBoth []EntityID
	for i := 0; i < 8; i++ {
		id := r.CreateEntity()
		r.AddComponent(id, "position", struct{}{})
		if i%2 == 0 {
			r.AddComponent(id, "health", struct{}{})
			withBoth = append(withBoth, id)
		}
	}

	got := r.EntitiesWith("position", "health")
	require.Equal(t, withBoth, got)

	// Repeated queries return the identical order.
	for i := 0; i < 5; i++ {
		require.Equal(t, got, r.EntitiesWith("position", "health"))
	}

	require.Nil(t, r.EntitiesWith("position", "unknown"))
}

func TestRegistryDestroyDetachesComponents(t *testing.T) {
	r := NewRegistry(nil)
	id := r.CreateEntity()
	r.AddComponent(id, "position", struct{}{})
	r.AddComponent(id, "health", struct{}{})

	r.DestroyEntity(id)
	require.False(t, r.HasComponent(id, "position"))
	require.False(t, r.HasComponent(id, "health"))
	require.Empty(t, r.EntitiesWith("position"))
}

func TestRegistryDestroyObservers(t *testing.T) {
	r := NewRegistry(nil)
	id := r.CreateEntity()
	r.AddComponent(id, "position", struct{}{})

	var order []string
	r.OnDestroy(func(dead EntityID) {
		require.Equal(t, id, dead)
		// Observers run before detachment.
		require.True(t, r.HasComponent(dead, "position"))
		order = append(order, "first")
	})
	r.OnDestroy(func(EntityID) { order = append(order, "second") })

	r.DestroyEntity(id)
	require.Equal(t, []string{"first", "second"}, order)
}

func TestRegistryComponentTypesCanonical(t *testing.T) {
	r := NewRegistry(nil)
	id := r.CreateEntity()
	r.AddComponent(id, "team", struct{}{})
	r.AddComponent(id, "aiState", struct{}{})
	r.AddComponent(id, "combat", struct{}{})

	require.Equal(t, []string{"aiState", "combat", "team"}, r.ComponentTypes(id))
}
