package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 3, cfg.Hub.RetryMax)
	assert.Equal(t, "@every 5m", cfg.Watch.Schedule)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("HUBWATCH_HUB_API_TOKEN", "from-env")

	path := filepath.Join(home, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"hub": {"url": "https://hub.example.com", "api_token": "from-file"},
		"pipeline": {"workers": 9},
		"database": {"path": "~/data/hw.db"},
		"notify": {"kafka": {"brokers": ["k1:9092"], "topic": "hub-items"}}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://hub.example.com", cfg.Hub.URL)
	assert.Equal(t, "from-env", cfg.Hub.APIToken)
	assert.Equal(t, 9, cfg.Pipeline.Workers)
	assert.Equal(t, filepath.Join(home, "data/hw.db"), cfg.Database.Path)
	assert.Equal(t, []string{"k1:9092"}, cfg.Notify.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoadMalformedFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hub":`), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Default()
	require.NoError(t, err)
	cfg.Hub.URL = "https://hub.example.com"

	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Hub, loaded.Hub)
	assert.Equal(t, cfg.Pipeline, loaded.Pipeline)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := &Config{
		Pipeline: PipelineConfig{Workers: 0},
		Database: DatabaseConfig{Driver: "postgres"},
		Cache:    CacheConfig{Enabled: true},
		Watch:    WatchConfig{Schedule: "not a cron"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"hub.url", "pipeline.workers", "database.dsn", "cache.redis_addr", "watch.schedule"} {
		assert.Contains(t, err.Error(), want)
	}
}
