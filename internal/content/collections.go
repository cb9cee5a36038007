// Package content loads the static game-content definitions (units,
// abilities, buildings) bundled with the server. Collections are read once
// at startup and are read-only from the simulation's perspective.
package content

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"warbound/server/internal/telemetry"
)

//go:embed definitions/*.json
var embeddedDefinitions embed.FS

// UnitDefinition models a designer-authored unit entry.
type UnitDefinition struct {
	ID             string   `json:"id" jsonschema:"title=Unit id,pattern=^[a-z0-9-]+$"`
	Name           string   `json:"name" jsonschema:"title=Display name"`
	MaxHealth      float64  `json:"maxHealth" jsonschema:"minimum=1"`
	MoveSpeed      float64  `json:"moveSpeed" jsonschema:"minimum=0,description=World units per second"`
	AttackDamage   float64  `json:"attackDamage" jsonschema:"minimum=0"`
	AttackRange    float64  `json:"attackRange" jsonschema:"minimum=0"`
	AttackCooldown float64  `json:"attackCooldown" jsonschema:"minimum=0,description=Seconds between attacks"`
	GoldCost       int      `json:"goldCost" jsonschema:"minimum=0"`
	Behavior       string   `json:"behavior,omitempty" jsonschema:"description=Behavior tree driving the unit"`
	Abilities      []string `json:"abilities,omitempty" jsonschema:"description=Ability ids available to the unit"`
}

// EffectDefinition is a pure-data effect entry applied when an ability
// lands. Periodic effects re-schedule themselves via the action scheduler.
type EffectDefinition struct {
	Kind     string  `json:"kind" jsonschema:"enum=damage,enum=heal,enum=damage-over-time,enum=slow"`
	Amount   float64 `json:"amount" jsonschema:"minimum=0"`
	Interval float64 `json:"interval,omitempty" jsonschema:"minimum=0,description=Seconds between periodic applications"`
	Ticks    int     `json:"ticks,omitempty" jsonschema:"minimum=0,description=Number of periodic applications"`
	Radius   float64 `json:"radius,omitempty" jsonschema:"minimum=0"`
}

// AbilityDefinition models a designer-authored ability entry. Abilities are
// composed from effect data, not subclassed code.
type AbilityDefinition struct {
	ID       string             `json:"id" jsonschema:"title=Ability id,pattern=^[a-z0-9-]+$"`
	Name     string             `json:"name"`
	CastTime float64            `json:"castTime" jsonschema:"minimum=0,description=Seconds before the ability lands"`
	Cooldown float64            `json:"cooldown" jsonschema:"minimum=0"`
	Range    float64            `json:"range" jsonschema:"minimum=0"`
	Effects  []EffectDefinition `json:"effects"`
}

// BuildingDefinition models a designer-authored building entry.
type BuildingDefinition struct {
	ID        string   `json:"id" jsonschema:"title=Building id,pattern=^[a-z0-9-]+$"`
	Name      string   `json:"name"`
	MaxHealth float64  `json:"maxHealth" jsonschema:"minimum=1"`
	GoldCost  int      `json:"goldCost" jsonschema:"minimum=0"`
	BuildTime float64  `json:"buildTime" jsonschema:"minimum=0,description=Seconds to construct"`
	Produces  []string `json:"produces,omitempty" jsonschema:"description=Unit ids this building trains"`
}

// FileDefinitions represents the canonical authoring format: one document
// holding every collection. The schema generator reflects this type.
type FileDefinitions struct {
	Units     []UnitDefinition     `json:"units"`
	Abilities []AbilityDefinition  `json:"abilities"`
	Buildings []BuildingDefinition `json:"buildings"`
}

// Collections indexes the loaded definitions by id.
type Collections struct {
	Units     map[string]UnitDefinition
	Abilities map[string]AbilityDefinition
	Buildings map[string]BuildingDefinition
}

// Load parses the embedded definition documents into indexed collections.
// Duplicate ids and dangling ability references are load errors; a missing
// behavior tree is only a warning at evaluation time, not here, because
// trees register after content.
func Load(logger telemetry.Logger) (*Collections, error) {
	if logger == nil {
		logger = telemetry.NopLogger{}
	}
	raw, err := embeddedDefinitions.ReadFile("definitions/collections.json")
	if err != nil {
		return nil, fmt.Errorf("content: read definitions: %w", err)
	}
	var file FileDefinitions
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("content: parse definitions: %w", err)
	}

	cols := &Collections{
		Units:     make(map[string]UnitDefinition, len(file.Units)),
		Abilities: make(map[string]AbilityDefinition, len(file.Abilities)),
		Buildings: make(map[string]BuildingDefinition, len(file.Buildings)),
	}
	for _, unit := range file.Units {
		if unit.ID == "" {
			return nil, fmt.Errorf("content: unit with empty id")
		}
		if _, dup := cols.Units[unit.ID]; dup {
			return nil, fmt.Errorf("content: duplicate unit id %q", unit.ID)
		}
		cols.Units[unit.ID] = unit
	}
	for _, ability := range file.Abilities {
		if ability.ID == "" {
			return nil, fmt.Errorf("content: ability with empty id")
		}
		if _, dup := cols.Abilities[ability.ID]; dup {
			return nil, fmt.Errorf("content: duplicate ability id %q", ability.ID)
		}
		cols.Abilities[ability.ID] = ability
	}
	for _, building := range file.Buildings {
		if building.ID == "" {
			return nil, fmt.Errorf("content: building with empty id")
		}
		if _, dup := cols.Buildings[building.ID]; dup {
			return nil, fmt.Errorf("content: duplicate building id %q", building.ID)
		}
		cols.Buildings[building.ID] = building
	}

	for _, unit := range cols.Units {
		for _, abilityID := range unit.Abilities {
			if _, ok := cols.Abilities[abilityID]; !ok {
				return nil, fmt.Errorf("content: unit %q references unknown ability %q", unit.ID, abilityID)
			}
		}
	}
	for _, building := range cols.Buildings {
		for _, unitID := range building.Produces {
			if _, ok := cols.Units[unitID]; !ok {
				return nil, fmt.Errorf("content: building %q produces unknown unit %q", building.ID, unitID)
			}
		}
	}

	logger.Infow("content collections loaded",
		"units", len(cols.Units),
		"abilities", len(cols.Abilities),
		"buildings", len(cols.Buildings),
	)
	return cols, nil
}

// MustLoad loads the embedded collections or panics. Startup-only helper.
func MustLoad(logger telemetry.Logger) *Collections {
	cols, err := Load(logger)
	if err != nil {
		panic(err)
	}
	return cols
}

// UnitIDs returns the unit ids in sorted order for deterministic iteration.
func (c *Collections) UnitIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Units))
	for id := range c.Units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
