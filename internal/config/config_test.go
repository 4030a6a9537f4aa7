package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Dev)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  host: 127.0.0.1
  port: 9000
storage:
  backend: file
  file_path: /tmp/th.json
auth:
  bot_secret: yaml-secret
logging:
  level: debug
  format: json
dev: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/th.json", cfg.Storage.FilePath)
	assert.Equal(t, "yaml-secret", cfg.Auth.BotSecret)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Dev)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7001")
	t.Setenv("BOT_SIGNING_SECRET", "env-secret")
	t.Setenv("DATABASE_URL", "postgres://h/db")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, "env-secret", cfg.Auth.BotSecret)
	assert.Equal(t, "postgres", cfg.Storage.Backend, "DATABASE_URL implies the postgres backend")
	assert.Equal(t, "postgres://h/db", cfg.Storage.DatabaseURL)
	assert.True(t, cfg.Dev)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "cassandra")
	_, err := Load("")
	assert.Error(t, err)
}

func TestPostgresBackendRequiresDSN(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	_, err := Load("")
	assert.Error(t, err)
}
