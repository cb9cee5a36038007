package content

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCollections(t *testing.T) {
	cols, err := Load(nil)
	require.NoError(t, err)

	require.Len(t, cols.Units, 4)
	require.Len(t, cols.Abilities, 4)
	require.Len(t, cols.Buildings, 2)

	t.Run("unit references resolve", func(t *testing.T) {
		for _, unit := range cols.Units {
			for _, abilityID := range unit.Abilities {
				_, ok := cols.Abilities[abilityID]
				require.True(t, ok, "unit %s references %s", unit.ID, abilityID)
			}
		}
	})

	t.Run("building production resolves", func(t *testing.T) {
		for _, building := range cols.Buildings {
			for _, unitID := range building.Produces {
				_, ok := cols.Units[unitID]
				require.True(t, ok, "building %s produces %s", building.ID, unitID)
			}
		}
	})

	t.Run("unit ids are sorted", func(t *testing.T) {
		ids := cols.UnitIDs()
		require.Equal(t, []string{"archer", "cleric", "footman", "pyromancer"}, ids)
	})

	t.Run("footman stats", func(t *testing.T) {
		footman := cols.Units["footman"]
		require.Equal(t, 120.0, footman.MaxHealth)
		require.Equal(t, "melee-combatant", footman.Behavior)
	})
}

func TestBuildSchema(t *testing.T) {
	schema := BuildSchema()
	require.NotNil(t, schema)
	require.Equal(t, "Warbound Content Collections", schema.Title)

	// The reflected schema must describe every collection type.
	for _, name := range []string{"UnitDefinition", "AbilityDefinition", "BuildingDefinition", "EffectDefinition"} {
		_, ok := schema.Definitions[name]
		require.True(t, ok, "schema missing definition %s", name)
	}
}
