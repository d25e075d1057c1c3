package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), cfg)
}

func TestLoadServerConfigOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 40000\nmax_clients: 4\n"), 0o600))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 40000, cfg.Port)
	assert.Equal(t, 4, cfg.MaxClients)
	assert.Equal(t, DefaultServerListenBacklog, cfg.ListenBacklog, "fields absent from YAML keep their default")
}

func TestLoadClientConfigMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadClientConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultClientConfig(), cfg)
}
