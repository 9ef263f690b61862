package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Pool.WorkersPerLevel)
	assert.Equal(t, "workspace", cfg.Workspace.Root)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanmesh.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[pool]
workers_per_level = 8

[workspace]
root = "/var/lib/fanmesh"

[logging]
level = "debug"
format = "json"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pool.WorkersPerLevel)
	assert.Equal(t, "/var/lib/fanmesh", cfg.Workspace.Root)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanmesh.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\nworkers_per_level = 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pool.WorkersPerLevel)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanmesh.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\nworkers_per_level = 2\n"), 0o644))

	t.Setenv("FANMESH_POOL_WORKERS_PER_LEVEL", "16")
	t.Setenv("FANMESH_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Pool.WorkersPerLevel)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EveryEnvOverride(t *testing.T) {
	t.Setenv("FANMESH_POOL_WORKERS_PER_LEVEL", "3")
	t.Setenv("FANMESH_WORKSPACE_ROOT", "/tmp/fanmesh-ws")
	t.Setenv("FANMESH_LOGGING_LEVEL", "debug")
	t.Setenv("FANMESH_LOGGING_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Pool.WorkersPerLevel)
	assert.Equal(t, "/tmp/fanmesh-ws", cfg.Workspace.Root)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fanmesh.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	t.Setenv("FANMESH_POOL_WORKERS_PER_LEVEL", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_UnknownLogLevel(t *testing.T) {
	t.Setenv("FANMESH_LOGGING_LEVEL", "verbose")
	_, err := Load("")
	assert.Error(t, err)
}
