package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "8080"
backend:
  base_url: http://api:8000
retry:
  max_retries: 5
  initial_delay_ms: 200
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://api:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.GetTimeout())

	p := cfg.Retry.Policy()
	assert.Equal(t, 5, p.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, p.InitialDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("BACKEND_URL", "http://backend:8000")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("RETRY_MAX_RETRIES", "x")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "http://backend:8000", cfg.Backend.BaseURL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PROPERTY_SEARCH_TEST_VAR=hello\n"), 0o644))
	t.Setenv("PROPERTY_SEARCH_TEST_VAR", "")
	os.Unsetenv("PROPERTY_SEARCH_TEST_VAR")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "hello", os.Getenv("PROPERTY_SEARCH_TEST_VAR"))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = "abc"
	cfg.Backend.BaseURL = "localhost"
	cfg.Retry.Jitter = 2
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "server.port")
	assert.ErrorContains(t, err, "backend.base_url")
	assert.ErrorContains(t, err, "retry.jitter")
}

func TestValidateGinMode(t *testing.T) {
	for _, mode := range []string{"debug", "release", "test"} {
		cfg := DefaultConfig()
		cfg.Server.GinMode = mode
		assert.NoError(t, cfg.Validate(), mode)
	}

	t.Setenv("GIN_MODE", "prod")
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, `server.gin_mode "prod"`)
}

func TestValidateMaxSessions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10000, cfg.Session.MaxSessions)

	cfg.Session.MaxSessions = 0
	assert.ErrorContains(t, cfg.Validate(), "session.max_sessions")
}
