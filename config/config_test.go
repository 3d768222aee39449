package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "app_session", cfg.CookieName)
	assert.Equal(t, 120, cfg.SessionTTLHours)
	assert.False(t, cfg.DevMode)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("COOKIE_NAME", "other_session")
	t.Setenv("SESSION_TTL_HOURS", "24")
	t.Setenv("DEV_MODE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "other_session", cfg.CookieName)
	assert.Equal(t, 24, cfg.SessionTTLHours)
	assert.True(t, cfg.DevMode)
}

func TestDurationAccessors(t *testing.T) {
	cfg := &ServerConfig{ProviderTimeoutSec: 5, SessionTTLHours: 120}

	assert.Equal(t, "5s", cfg.ProviderTimeout().String())
	assert.Equal(t, "120h0m0s", cfg.SessionTTL().String())
}
