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

	assert.Equal(t, "moderate", cfg.Autonomy.Level)
	assert.Equal(t, "hybrid", cfg.Learning.Mode)
	assert.Equal(t, 0.7, cfg.Learning.BaseWeight)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.NotEmpty(t, cfg.Storage.SQLitePath)
	assert.Equal(t, 0.7, cfg.Consolidation.MinConfidence)
	assert.Equal(t, 5, cfg.Consolidation.MinFeedback)
	assert.Equal(t, 20, cfg.Consolidation.MaxPerRun)
	assert.Equal(t, 5, cfg.Executor.RateLimit)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	// viper reports a missing explicit file; the caller falls back to
	// Default() in that case, so either outcome is acceptable here as long
	// as no partial config leaks through.
	if err != nil {
		assert.Nil(t, cfg)
		return
	}
	assert.Equal(t, "moderate", cfg.Autonomy.Level)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
autonomy:
  level: aggressive
learning:
  mode: implicit_only
  base_weight: 0.5
storage:
  type: sqlite
  sqlite_path: /tmp/steward-test/decisions.db
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "aggressive", cfg.Autonomy.Level)
	assert.Equal(t, "implicit_only", cfg.Learning.Mode)
	assert.Equal(t, 0.5, cfg.Learning.BaseWeight)
	assert.Equal(t, "/tmp/steward-test/decisions.db", cfg.Storage.SQLitePath)

	// Unset sections keep defaults.
	assert.Equal(t, 20, cfg.Consolidation.MaxPerRun)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STEWARD_AUTONOMY_LEVEL", "conservative")
	t.Setenv("DATABASE_URL", "postgres://steward@localhost/steward")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "conservative", cfg.Autonomy.Level)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://steward@localhost/steward", cfg.Storage.PostgresDSN)
}
