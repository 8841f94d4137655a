package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, currentVersion, cfg.Version)
	require.Equal(t, uint8(16), cfg.MaxChainsBinlog)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.MaxChainsBinlog = 20
	cfg.Peers.Port = 4242

	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, uint8(20), loaded.MaxChainsBinlog)
	require.Equal(t, uint16(4242), loaded.Peers.Port)
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, uint8(16), cfg.MaxChainsBinlog)
}

func TestMigrateBackfillsZeroValues(t *testing.T) {
	cfg := migrate(&Config{})
	require.Equal(t, currentVersion, cfg.Version)
	require.Equal(t, uint8(16), cfg.MaxChainsBinlog)
	require.Equal(t, ".", cfg.SnapshotDir)
}
