package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chat-widget-gateway", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30, cfg.App.RequestTimeoutSeconds)
	assert.Equal(t, 443, cfg.Realtime.Port)
	assert.Equal(t, "/mqtt", cfg.Realtime.Path)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "first-visit", cfg.AutoStart.DefaultPolicy)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("AUTOSTART_ECHO_TIMEOUT_SECONDS", "5")
	t.Setenv("AUTOSTART_DEFAULT_POLICY", "always")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 5, cfg.AutoStart.EchoTimeoutSeconds)
	assert.Equal(t, "always", cfg.AutoStart.DefaultPolicy)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	assert.Equal(t, "30s", AppConfig{RequestTimeoutSeconds: 30}.RequestTimeout().String())
	assert.Equal(t, "0s", AppConfig{}.RequestTimeout().String())
	assert.Equal(t, "15s", VendorConfig{}.HTTPTimeout().String())
	assert.Equal(t, "5s", AutoStartConfig{EchoTimeoutSeconds: 5}.EchoTimeout().String())
	assert.Equal(t, "15s", AutoStartConfig{}.EchoTimeout().String())
}

func TestGetEnvAsIntFallback(t *testing.T) {
	t.Setenv("SOME_INT", "garbage")
	assert.Equal(t, 7, getEnvAsInt("SOME_INT", 7))
	assert.Equal(t, 7, getEnvAsInt("UNSET_INT", 7))
}
