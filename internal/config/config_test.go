package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		require.Equal(t, ":8080", cfg.Addr)
	})
}

func TestLoadOverrides(t *testing.T) {
	path := writeFile(t, "addr: \":9000\"\nsim:\n  tickRate: 30\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, 30, cfg.Sim.TickRate)
	// Untouched fields keep their defaults.
	require.Equal(t, 512, cfg.Sim.CommandCapacity)
	require.InDelta(t, 1.0/30.0, cfg.Sim.TickStep(), 1e-12)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "addr: [unclosed"))
		require.Error(t, err)
	})

	t.Run("bad tick rate", func(t *testing.T) {
		_, err := Load(writeFile(t, "sim:\n  tickRate: 0\n"))
		require.Error(t, err)
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := Load(writeFile(t, "logLevel: loud\n"))
		require.Error(t, err)
	})
}
