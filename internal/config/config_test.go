package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 6001
jwt:
  secret_key: file-secret
database:
  host: db
  port: 5432
  user: u
  password: p
  name: chat
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6001, cfg.App.Port)
	assert.Equal(t, "file-secret", cfg.JWT.SecretKey)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.Expire)
	assert.Equal(t, "jwt", cfg.JWT.CookieName)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "postgres://u:p@db:5432/chat?sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 256, cfg.WebSocket.SendBufferSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret_key: file-secret
`)
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("CHAT_PORT", "7001")
	t.Setenv("JWT_EXPIRE", "15m")
	t.Setenv("NATS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.SecretKey)
	assert.Equal(t, 7001, cfg.App.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.Expire)
	assert.True(t, cfg.NATS.Enabled)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 5001
`)
	t.Setenv("JWT_SECRET", "")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, 3, GetEnvInt("X_INT", 3))
	assert.Equal(t, time.Second, GetEnvDuration("X_DUR", time.Second))
	assert.True(t, GetEnvBool("X_BOOL", true))
}
