package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "bookmark-snapshots", cfg.Storage.Bucket)
	assert.Equal(t, 10, cfg.Reconcile.BatchSize)
	assert.Equal(t, 3, cfg.Reconcile.MaxConcurrency)
	assert.Equal(t, 3, cfg.Reconcile.MoveCollapseThreshold)
	assert.Equal(t, 30, cfg.Reconcile.OperationTimeoutSeconds)
	assert.False(t, cfg.Reconcile.MergeUpdates)
	assert.True(t, cfg.Apply.Backup)
	assert.Equal(t, 2, cfg.Apply.MaxPasses)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("RECONCILE_BATCH_SIZE", "25")
	t.Setenv("RECONCILE_MERGE_UPDATES", "true")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Reconcile.BatchSize)
	assert.True(t, cfg.Reconcile.MergeUpdates)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RECONCILE_MAX_CONCURRENCY=7\nLOG_FORMAT=console\n"), 0o600)
	require.NoError(t, err)
	t.Cleanup(func() {
		os.Unsetenv("RECONCILE_MAX_CONCURRENCY")
		os.Unsetenv("LOG_FORMAT")
	})

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Reconcile.MaxConcurrency)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("RECONCILE_BATCH_SIZE", "-1")

	_, err := LoadConfig(t.TempDir())
	assert.ErrorContains(t, err, "batch_size")
}
