package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 45, cfg.Dispatch.BatchSize)
	assert.Equal(t, "Bulk Email", cfg.Dispatch.FallbackSubject)
	assert.Equal(t, "Default email body", cfg.Dispatch.FallbackBody)
	assert.Equal(t, 100, cfg.Dispatch.PreviewLimit)
	assert.Equal(t, 30, cfg.MailAPI.TimeoutSeconds)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
mail_api:
  endpoint: https://mail.example.test/send
  timeout_seconds: 10
dispatch:
  batch_size: 20
database:
  driver: snowflake
  url: user:pass@account/db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://mail.example.test/send", cfg.MailAPI.Endpoint)
	assert.Equal(t, 20, cfg.Dispatch.BatchSize)
	assert.Equal(t, "snowflake", cfg.Database.Driver)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.Dispatch.BatchSize)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/db")
	t.Setenv("MAIL_API_ENDPOINT", "https://env.example.test/send")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/db", cfg.Database.URL)
	assert.Equal(t, "https://env.example.test/send", cfg.MailAPI.Endpoint)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	assert.ErrorContains(t, err, "mail_api.endpoint")

	cfg.MailAPI.Endpoint = "https://mail.example.test/send"
	err = cfg.Validate()
	assert.ErrorContains(t, err, "database.url")

	cfg.Database.URL = "postgres://localhost/bulkmail"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "database.driver")
}
