package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
version = "1.0.0"

[server]
name = "versiond"
environment = "test"

[server.http]
port = 8081

[log]
level = "debug"

[engine]
aggregator = "max"
arena_limit = 100000

[snapshot]
backend = "file"
dir = "/tmp/snapshots"

[snapshot.minio]
secret_access_key = "s3cr3t"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesFileDefaultsAndEnv(t *testing.T) {
	t.Setenv("APP_SERVER_HTTP_PORT", "9090")
	var cfg Config
	require.NoError(t, load(viper.New(), writeConfig(t, sampleTOML), &cfg, false))

	assert.Equal(t, "versiond", cfg.Server.Name)
	assert.Equal(t, 9090, cfg.Server.HTTP.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "max", cfg.Engine.Aggregator)
	assert.Equal(t, 100000, cfg.Engine.ArenaLimit)
	assert.Equal(t, "file", cfg.Snapshot.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.DefaultExpiration)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	body := `
[server]
name = "versiond"
environment = "staging"
`
	var cfg Config
	err := load(viper.New(), writeConfig(t, body), &cfg, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRequiresSnapshotDirForFileBackend(t *testing.T) {
	body := `
[snapshot]
backend = "file"
`
	var cfg Config
	require.Error(t, load(viper.New(), writeConfig(t, body), &cfg, false))
}

func TestMaskHidesSecrets(t *testing.T) {
	m := map[string]any{
		"Snapshot": map[string]any{
			"Minio": map[string]any{"SecretAccessKey": "x", "Endpoint": "minio:9000"},
		},
		"Cache": map[string]any{"Redis": map[string]any{"Password": "p"}},
	}
	mask(m)
	minio := m["Snapshot"].(map[string]any)["Minio"].(map[string]any)
	assert.Equal(t, "******", minio["SecretAccessKey"])
	assert.Equal(t, "minio:9000", minio["Endpoint"])
	assert.Equal(t, "******", m["Cache"].(map[string]any)["Redis"].(map[string]any)["Password"])
}

func TestShippedConfigIsValid(t *testing.T) {
	var cfg Config
	require.NoError(t, load(viper.New(), filepath.Join("..", "configs", "config.toml"), &cfg, false))

	assert.Equal(t, "versiond", cfg.Server.Name)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, int64(8<<20), cfg.Server.HTTP.MaxBodyBytes)
	assert.Equal(t, 500*time.Millisecond, cfg.Log.SlowThreshold)
	assert.Equal(t, "file", cfg.Snapshot.Backend)
	assert.False(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, 1024, cfg.Engine.MaxContainers)
}
