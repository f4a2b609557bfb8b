package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadServer_NoFileUsesDefaults(t *testing.T) {
	cfg, err := LoadServer(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "dummy", cfg.ArchiveURL)
	require.True(t, cfg.StrictUnimplemented)
}

func TestLoadServer_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":4000\"\narchive_url: \"/models/bouncing_ball.fmu\"\n"), 0o644))

	cfg, err := LoadServer(path)
	require.NoError(t, err)
	require.Equal(t, ":4000", cfg.Addr)
	require.Equal(t, "/models/bouncing_ball.fmu", cfg.ArchiveURL)
}

func TestLoadCoordinator_DurationDecodeHook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("step_size: \"50ms\"\nend_time: \"2s\"\n"), 0o644))

	cfg, err := LoadCoordinator(path)
	require.NoError(t, err)
	require.Equal(t, 50*time.Millisecond, cfg.StepSize)
	require.Equal(t, 2*time.Second, cfg.EndTime)
}

func TestSaveServer_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := defaultServerConfig()
	cfg.Addr = ":9999"
	require.NoError(t, SaveServer(cfg, path))

	loaded, err := LoadServer(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", loaded.Addr)
}
