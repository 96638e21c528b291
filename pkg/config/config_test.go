package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutFile(t *testing.T) {
	t.Setenv("BOLTBRIDGE_CONFIG", "")
	t.Setenv("HOME", t.TempDir()) // keep ~/.boltbridge out of the search path

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit missing file should fail")

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "boltbridge", cfg.AppName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "tcp", cfg.Port.Kind)
	assert.Equal(t, "json", cfg.Port.Codec)
	assert.Zero(t, cfg.Bridge.QueueLimit)
	assert.Equal(t, 500, cfg.Net.DialBackoffInitialMS)
	assert.False(t, cfg.Metrics.Enable)
}

func TestLoadFromFile(t *testing.T) {
	y := `
app_name: bridge-test
log:
  level: debug
  format: json
bridge:
  queue_limit: 500
  heartbeat_ms: 1000
port:
  kind: WS
  address: "127.0.0.1:9090"
  codec: cbor
net:
  dial_backoff_initial_ms: 10
metrics:
  enable: true
  listen: "127.0.0.1:9901"
`
	path := filepath.Join(t.TempDir(), "boltbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(y), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bridge-test", cfg.AppName)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Bridge.QueueLimit)
	assert.Equal(t, "ws", cfg.Port.Kind, "kind is normalized to lower case")
	assert.Equal(t, "cbor", cfg.Port.Codec)
	assert.Equal(t, 16, cfg.Port.MaxFrameMB, "unset values keep defaults")
	assert.Equal(t, 10, cfg.Net.DialBackoffInitialMS)
	assert.Equal(t, 30000, cfg.Net.DialBackoffMaxMS)
	assert.True(t, cfg.Metrics.Enable)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BOLTBRIDGE_LOG_LEVEL", "warn")
	t.Setenv("BOLTBRIDGE_PORT_KIND", "quic")
	t.Setenv("BOLTBRIDGE_BRIDGE_QUEUE_LIMIT", "64")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "quic", cfg.Port.Kind)
	assert.Equal(t, 64, cfg.Bridge.QueueLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	write := func(y string) string {
		path := filepath.Join(t.TempDir(), "boltbridge.yaml")
		require.NoError(t, os.WriteFile(path, []byte(y), 0o644))
		return path
	}

	_, err := Load(write("log:\n  level: shouty\n"))
	assert.ErrorContains(t, err, "log.level")

	_, err = Load(write("bridge:\n  queue_limit: -1\n"))
	assert.ErrorContains(t, err, "queue_limit")

	_, err = Load(write("port:\n  kind: \" \"\n"))
	assert.ErrorContains(t, err, "port.kind")
}
