package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"AGENTD_HOST", "AGENTD_PORT", "AGENTD_TOKEN", "AGENTD_NO_TOKEN"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8787, cfg.Port)
	assert.Equal(t, "127.0.0.1:8787", cfg.Addr())
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("AGENTD_PORT", "9999")
	t.Setenv("AGENTD_TOKEN", "secret")

	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.AuthEnabled())
}

func TestNoTokenDisablesAuthEvenWithToken(t *testing.T) {
	t.Setenv("AGENTD_TOKEN", "secret")
	t.Setenv("AGENTD_NO_TOKEN", "true")

	cfg, err := LoadWithPath(t.TempDir())
	require.NoError(t, err)
	assert.False(t, cfg.AuthEnabled())
}

func TestCORSEnabledOnlyWhenConfigured(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.CORS.Enabled())

	cfg.CORS.AllowOrigins = []string{"https://example.com"}
	assert.True(t, cfg.CORS.Enabled())
}
