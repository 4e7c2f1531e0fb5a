package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/netcodec/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netcodec.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
netcodec:
  log:
    level: debug
    file:
      filename: /tmp/netcodec.log
  pool:
    initial_size: 8
    max_size: 16
    block_capacity: 2048
    zeroing: true
  engine:
    workers: 3
    link_type: 1
  decoder:
    tunnel:
      geneve: false
  metrics:
    enabled: true
    listen: "127.0.0.1:9100"
    path: stats
  handlers:
    - name: stats
    - name: tcp-checksum
      type: checksum
      options:
        protocol: tcp
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/netcodec.log", cfg.Log.File.Filename)
	assert.Equal(t, 100, cfg.Log.File.MaxSize)
	assert.Equal(t, PoolConfig{InitialSize: 8, MaxSize: 16, BlockCapacity: 2048, Zeroing: true}, cfg.Pool)
	assert.Equal(t, EngineConfig{Workers: 3, LinkType: 1}, cfg.Engine)
	assert.Equal(t, TunnelConfig{VXLAN: true, GRE: true, Geneve: false, IPIP: true}, cfg.Decoder.Tunnel)
	assert.Equal(t, "/stats", cfg.Metrics.Path)

	require.Len(t, cfg.Handlers, 2)
	assert.Equal(t, "stats", cfg.Handlers[0].Type)
	assert.Equal(t, "checksum", cfg.Handlers[1].Type)
	assert.Equal(t, "tcp", cfg.Handlers[1].Options["protocol"])
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 4096, cfg.Pool.MaxSize)
	assert.Equal(t, 65536, cfg.Pool.BlockCapacity)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Engine.Workers)
	assert.Equal(t, -1, cfg.Engine.LinkType)
	assert.True(t, cfg.Decoder.Tunnel.VXLAN)
	assert.False(t, cfg.Metrics.Enabled)
	require.Len(t, cfg.Handlers, 1)
	assert.Equal(t, "stats", cfg.Handlers[0].Type)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("NETCODEC_POOL_MAX_SIZE", "32")
	t.Setenv("NETCODEC_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "netcodec:\n  pool:\n    max_size: 8\n    initial_size: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Pool.MaxSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"log level":     "netcodec:\n  log:\n    level: loud\n",
		"initial > max": "netcodec:\n  pool:\n    initial_size: 9\n    max_size: 8\n",
		"zero block":    "netcodec:\n  pool:\n    block_capacity: 0\n",
		"workers":       "netcodec:\n  engine:\n    workers: -2\n",
		"link type":     "netcodec:\n  engine:\n    link_type: -5\n",
		"metrics":       "netcodec:\n  metrics:\n    enabled: true\n    listen: \"\"\n",
		"unnamed":       "netcodec:\n  handlers:\n    - type: stats\n",
		"duplicate":     "netcodec:\n  handlers:\n    - name: a\n    - name: a\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
