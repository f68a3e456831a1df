package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7233", cfg.TemporalAddress)
	assert.Equal(t, "default", cfg.TemporalNamespace)
	assert.Equal(t, "metadata-extract", cfg.TaskQueue)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 16, cfg.MaxConcurrentActivities)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TEMPORAL_ADDRESS", "temporal.internal:7233")
	t.Setenv("MEX_TASK_QUEUE", "metadata-extract-dev")
	t.Setenv("MEX_MINIO_USE_SSL", "true")
	t.Setenv("MEX_MAX_CONCURRENT_ACTIVITIES", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "temporal.internal:7233", cfg.TemporalAddress)
	assert.Equal(t, "metadata-extract-dev", cfg.TaskQueue)
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, 4, cfg.MaxConcurrentActivities)
}

func TestLoadFileOverlayThenEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"httpAddr: \":9090\"\nlogFormat: json\nminio:\n  bucket: artifacts-dev\n"), 0o644))

	t.Setenv("MEX_CONFIG_FILE", path)
	t.Setenv("MEX_HTTP_ADDR", ":7070")

	cfg, err := Load()
	require.NoError(t, err)

	// Env beats file; file beats defaults.
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "artifacts-dev", cfg.Minio.Bucket)
	assert.Equal(t, "default", cfg.TemporalNamespace)
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv("MEX_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoggerLevels(t *testing.T) {
	cfg := defaults()
	cfg.LogLevel = "debug"
	require.NotNil(t, cfg.Logger())

	cfg.LogFormat = "json"
	require.NotNil(t, cfg.Logger())
}
