package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_Empty(t *testing.T) {
	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))
	assert.Equal(t, &StructuredConfig{}, cfg)
}

func TestParseEnv_ServerSection(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", "0.0.0.0:8080")
	t.Setenv("SERVER_REQUEST_TIMEOUT", "45s")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddress)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
}

func TestParseEnv_AuthSection(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SIGN_KEY", "secret")
	t.Setenv("AUTH_TOKEN_ISSUER", "circlesync")
	t.Setenv("AUTH_TOKEN_DURATION", "24h")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "secret", cfg.Auth.TokenSignKey)
	assert.Equal(t, "circlesync", cfg.Auth.TokenIssuer)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration)
}

func TestParseEnv_StorageSection(t *testing.T) {
	t.Setenv("STORAGE_DB_DATABASE_URI", "postgres://localhost:5432/circlesync")
	t.Setenv("STORAGE_REDIS_URL", "redis://localhost:6379/0")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "postgres://localhost:5432/circlesync", cfg.Storage.DB.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.Redis.URL)
}

func TestParseEnv_DeviceSection(t *testing.T) {
	t.Setenv("DEVICE_STATE_PATH", "/var/lib/circlesync/device.db")
	t.Setenv("DEVICE_BACKOFF_BASE", "2s")
	t.Setenv("DEVICE_BACKOFF_CAP", "1m")
	t.Setenv("DEVICE_BACKOFF_MAX_ATTEMPTS", "7")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, "/var/lib/circlesync/device.db", cfg.Device.StatePath)
	assert.Equal(t, 2*time.Second, cfg.Device.BackoffBase)
	assert.Equal(t, time.Minute, cfg.Device.BackoffCap)
	assert.Equal(t, 7, cfg.Device.BackoffMaxAttempts)
}

func TestParseEnv_InvalidDuration(t *testing.T) {
	t.Setenv("WORKERS_SYNC_INTERVAL", "not-a-duration")

	cfg := &StructuredConfig{}
	assert.Error(t, parseEnv(cfg))
}
