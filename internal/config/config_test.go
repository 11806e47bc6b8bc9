package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(flagValues{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 3, cfg.Ingest.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.RetryBaseDelay)
	assert.Zero(t, cfg.Ingest.Deadline)
	assert.Equal(t, 5, cfg.Dedup.Threshold)
	assert.Equal(t, 512, cfg.Dedup.WindowSize)
	assert.Equal(t, 5_000, cfg.Quality.MinBytes)
	assert.Equal(t, "local", cfg.Storage.Backend)

	// Derived paths hang off the data path.
	assert.Equal(t, filepath.Join(cfg.Data.BasePath, "catalog"), cfg.Data.StorePath())
	assert.Equal(t, filepath.Join(cfg.Data.BasePath, "search"), cfg.Data.SearchPath())
	assert.Equal(t, filepath.Join(cfg.Data.BasePath, "archive"), cfg.Storage.LocalPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATA_PATH", t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("INGEST_WORKERS", "8")
	t.Setenv("DEDUP_THRESHOLD", "8")
	t.Setenv("INGEST_DEADLINE", "30m")
	t.Setenv("QUALITY_MAX_EDGE_RATIO", "0.5")

	cfg, err := load(flagValues{})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 8, cfg.Ingest.Workers)
	assert.Equal(t, 8, cfg.Dedup.Threshold)
	assert.Equal(t, 30*time.Minute, cfg.Ingest.Deadline)
	assert.Equal(t, 0.5, cfg.Quality.MaxEdgeRatio)
}

func TestLoadFlagsBeatEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "none")

	cfg, err := load(flagValues{port: "7070", storageBackend: "local"})
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad environment", env: map[string]string{"ENV": "testing"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
		{name: "bad storage backend", env: map[string]string{"STORAGE_BACKEND": "s3"}},
		{name: "workers above ceiling", env: map[string]string{"INGEST_WORKERS": "500"}},
		{name: "threshold above hash width", env: map[string]string{"DEDUP_THRESHOLD": "70"}},
		{name: "bad deadline", env: map[string]string{"INGEST_DEADLINE": "tomorrow"}},
		{name: "drive without credentials", env: map[string]string{"STORAGE_BACKEND": "drive"}},
		{name: "max below min bytes", env: map[string]string{"QUALITY_MAX_BYTES": "100"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(flagValues{})
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# worklist\nSOLEDEX_TEST_KEY=from-file\nSOLEDEX_TEST_QUOTED=\"quoted value\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("SOLEDEX_TEST_KEY", "")
	t.Setenv("SOLEDEX_TEST_QUOTED", "")
	require.NoError(t, loadEnvFile(path))

	assert.Equal(t, "from-file", os.Getenv("SOLEDEX_TEST_KEY"))
	assert.Equal(t, "quoted value", os.Getenv("SOLEDEX_TEST_QUOTED"))
}

func TestLoadEnvFilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SOLEDEX_TEST_PRI=file\n"), 0o644))

	t.Setenv("SOLEDEX_TEST_PRI", "process")
	require.NoError(t, loadEnvFile(path))

	// A real environment variable wins over the .env file.
	assert.Equal(t, "process", os.Getenv("SOLEDEX_TEST_PRI"))
}

func TestLoadEnvFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NOT A PAIR\n"), 0o644))

	assert.Error(t, loadEnvFile(path))
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := expandPath("~/soledex-data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "soledex-data"), expanded)
}
