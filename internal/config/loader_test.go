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

// newTestLoader gives each test its own viper instance so tests do not leak
// state through the global one.
func newTestLoader() *Loader {
	return &Loader{v: viper.New()}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pantrysnap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "eng+fra", cfg.Pipeline.DefaultLang)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Invoker.CallTimeout)
	assert.Equal(t, 3, cfg.Pipeline.Invoker.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Pipeline.Invoker.Breaker.FailureThreshold)
	assert.True(t, cfg.Pipeline.Parser.KeepUnmatched)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoader_LoadWithFile(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
pipeline:
  default_lang: fra
  invoker:
    call_timeout: 45s
    retry:
      max_attempts: 5
server:
  port: 9090
`)

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "fra", cfg.Pipeline.DefaultLang)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.Invoker.CallTimeout)
	assert.Equal(t, 5, cfg.Pipeline.Invoker.Retry.MaxAttempts)
	assert.Equal(t, 9090, cfg.Server.Port)

	// Unset keys keep their defaults.
	assert.Equal(t, 5, cfg.Pipeline.Invoker.Breaker.FailureThreshold)
}

func TestLoader_LoadWithFileMissing(t *testing.T) {
	_, err := newTestLoader().LoadWithFile("/nonexistent/pantrysnap.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoader_InvalidValuesRejected(t *testing.T) {
	path := writeTempConfig(t, `
server:
  port: 0
`)
	_, err := newTestLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoader_EnvironmentOverride(t *testing.T) {
	t.Setenv("PANTRYSNAP_LOG_LEVEL", "warn")
	t.Setenv("PANTRYSNAP_SERVER_PORT", "9999")

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoader_SetOverridesFile(t *testing.T) {
	path := writeTempConfig(t, "log_level: debug\n")

	loader := newTestLoader()
	loader.Set("log_level", "error")
	cfg, err := loader.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	assert.Contains(t, paths, ".")
	assert.Contains(t, paths, "/etc/pantrysnap")
}
