// Package config loads the server configuration from YAML with sane
// defaults for every field, so an empty file (or none at all) boots a
// working server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// LogLevel selects the zap level: debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
	// Seed is the lockstep world seed shared with every client of a room.
	// Zero derives a per-room seed from the room id.
	Seed uint64 `yaml:"seed"`

	Sim SimConfig `yaml:"sim"`
}

// SimConfig tunes the per-room simulation loop.
type SimConfig struct {
	// TickRate is fixed steps per second.
	TickRate int `yaml:"tickRate"`
	// CatchupMaxTicks clamps how many budgets one late frame may cover.
	CatchupMaxTicks int `yaml:"catchupMaxTicks"`
	// CommandCapacity sizes the staged-command ring per room.
	CommandCapacity int `yaml:"commandCapacity"`
	// PerActorLimit caps staged commands per actor per batch.
	PerActorLimit int `yaml:"perActorLimit"`
	// QueueWarningStep logs every time the queue grows by this many.
	QueueWarningStep int `yaml:"queueWarningStep"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Addr:     ":8080",
		LogLevel: "info",
		Sim: SimConfig{
			TickRate:         20,
			CatchupMaxTicks:  5,
			CommandCapacity:  512,
			PerActorLimit:    32,
			QueueWarningStep: 128,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Sim.TickRate <= 0 {
		return fmt.Errorf("config: tickRate must be positive, got %d", c.Sim.TickRate)
	}
	if c.Sim.CommandCapacity <= 0 {
		return fmt.Errorf("config: commandCapacity must be positive, got %d", c.Sim.CommandCapacity)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logLevel %q", c.LogLevel)
	}
	return nil
}

// TickStep returns the fixed step in seconds.
func (c SimConfig) TickStep() float64 {
	if c.TickRate <= 0 {
		return 0.05
	}
	return 1.0 / float64(c.TickRate)
}
