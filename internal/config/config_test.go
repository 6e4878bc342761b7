package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("development", "testdata/config.toml")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, time.Hour, cfg.SessionTTL())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)

	prodCfg, err := Load("prod", "testdata/config.toml")
	require.NoError(t, err)
	assert.True(t, prodCfg.SecureCookies)
	assert.True(t, prodCfg.SentryEnabled)
	assert.Equal(t, 30*time.Minute, prodCfg.SessionTTL())
}

func TestLoad_UnknownEnv(t *testing.T) {
	_, err := Load("staging", "testdata/config.toml")
	assert.ErrorContains(t, err, "unknown env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("development", "testdata/nope.toml")
	assert.Error(t, err)
}

func TestConfig_SessionTTL_Default(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, time.Hour, cfg.SessionTTL())

	cfg.SessionTTLMinutes = 15
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL())
}
