package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  addr: ":9090"
storage:
  backend: memory
optimizer:
  url: "http://localhost:3000"
scheduler:
  emergency_interval_min: 5
  fill_threshold_pct: 70
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.API.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "http://localhost:3000", cfg.Optimizer.URL)
	assert.Equal(t, 5, cfg.Scheduler.EmergencyIntervalMin)
	assert.Equal(t, 70.0, cfg.Scheduler.FillThresholdPct)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"optimizer": {"url": "http://vroom:3000"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.API.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 15, cfg.Scheduler.EmergencyIntervalMin)
	assert.Equal(t, 24, cfg.Scheduler.FullIntervalHours)
	assert.Equal(t, 80.0, cfg.Scheduler.FillThresholdPct)
	assert.Equal(t, 3, cfg.Assign.CrewSize)
	assert.Equal(t, 660.0, cfg.Planner.BinCapacityL)
	assert.Equal(t, 30, cfg.Optimizer.TimeoutSeconds)
	assert.Equal(t, "bins/+/reading", cfg.Telemetry.Topic)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WF_API__ADDR", ":7070")
	t.Setenv("WF_STORAGE__BACKEND", "memory")
	path := writeConfig(t, "config.yaml", `
optimizer:
  url: "http://vroom:3000"
storage:
  backend: postgres
  postgres:
    url: "postgres://ignored"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.API.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
optimizer:
  url: "http://vroom:3000"
storage:
  backend: cassandra
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingOptimizerURL(t *testing.T) {
	path := writeConfig(t, "config.yaml", `storage: {backend: memory}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeConfig(t, "config.toml", `x = 1`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadPostgresBackendRequiresURL(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
optimizer:
  url: "http://vroom:3000"
storage:
  backend: postgres
`)
	_, err := Load(path)
	assert.Error(t, err)
}
