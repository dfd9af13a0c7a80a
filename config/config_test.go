package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Engine.MaxWorkers)
	assert.False(t, cfg.Engine.ContinueOnError)
	assert.Equal(t, "file", cfg.Snapshot.Backend)
	assert.Equal(t, ".pnd-agents/workflow_state.json", cfg.Snapshot.Path)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
engine:
  max_workers: 8
snapshot:
  backend: redis
  redis:
    addr: redis.internal:6379
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Engine.MaxWorkers)
	assert.Equal(t, "redis", cfg.Snapshot.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Snapshot.Redis.Addr)
	// Untouched keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ".pnd-agents/workflow_state.json", cfg.Snapshot.Path)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [broken"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverridesEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
`), 0o644))

	t.Setenv("PND_AGENTS_LOG_LEVEL", "warn")
	t.Setenv("PND_AGENTS_ENGINE_MAX_WORKERS", "16")
	t.Setenv("PND_AGENTS_ENGINE_CONTINUE_ON_ERROR", "true")
	t.Setenv("PND_AGENTS_SNAPSHOT_BACKEND", "memory")
	t.Setenv("PND_AGENTS_METRICS_ENABLED", "1")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 16, cfg.Engine.MaxWorkers)
	assert.True(t, cfg.Engine.ContinueOnError)
	assert.Equal(t, "memory", cfg.Snapshot.Backend)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_InvalidEnvInt(t *testing.T) {
	t.Setenv("PND_AGENTS_ENGINE_MAX_WORKERS", "many")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PND_AGENTS_ENGINE_MAX_WORKERS")
}

func TestLoad_InvalidEnvBool(t *testing.T) {
	t.Setenv("PND_AGENTS_METRICS_ENABLED", "perhaps")
	_, err := Load("")
	require.Error(t, err)
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	_ = logger.Sync()

	logger, err = BuildLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	_ = logger.Sync()
}

func TestBuildLogger_InvalidLevel(t *testing.T) {
	_, err := BuildLogger(LogConfig{Level: "shouting"})
	require.Error(t, err)
}
