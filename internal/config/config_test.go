package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, `
mode: debug
port: 9090
secret: s3cret
signal:
  ping_period: 30s
  join_limit: 3
store:
  driver: postgres
  dsn: postgres://localhost/voicemesh
redis:
  addr: localhost:6379
`)
	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Signal.PingPeriod)
	assert.Equal(t, 3, cfg.Signal.JoinLimit)
	assert.Equal(t, int64(32768), cfg.Signal.ReadLimit, "unset keys keep defaults")
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadFromEnvOverride(t *testing.T) {
	t.Setenv("VOICEMESH_SECRET", "from-env")
	t.Setenv("VOICEMESH_SIGNAL_REQUIRE_AUTH", "true")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Secret)
	assert.True(t, cfg.Signal.RequireAuth)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 60*time.Second, cfg.Signal.PongWait())
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := writeFile(t, "secret: x\nstore:\n  driver: sqlite\n")
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient(ClientViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Server)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers)
	assert.Equal(t, 16*time.Millisecond, cfg.Speaking.SampleInterval)
	assert.Equal(t, 3, cfg.MaxNegotiationRetries)
}

func TestLoadClientOverrides(t *testing.T) {
	v := ClientViper()
	v.Set("server", "http://voice.example:8080")
	path := writeFile(t, "speaking:\n  threshold: 0.25\n")

	cfg, err := LoadClient(v, path)
	require.NoError(t, err)
	assert.Equal(t, "http://voice.example:8080", cfg.Server)
	assert.InDelta(t, 0.25, cfg.Speaking.Threshold, 1e-9)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}
