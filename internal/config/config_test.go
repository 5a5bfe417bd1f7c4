package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "239.255.77.77", cfg.Announcer.Group)
	assert.Equal(t, 7777, cfg.Announcer.Port)
	assert.Equal(t, 1, cfg.Announcer.TTL)
	assert.False(t, cfg.Announcer.DisableLoopback)
	assert.Equal(t, 150*time.Millisecond, cfg.Announcer.PollTimeout)
	assert.Equal(t, 150*time.Microsecond, cfg.Announcer.SendDelay)
	assert.Equal(t, 5*time.Second, cfg.Announcer.ShutdownTimeout)
	assert.Equal(t, 32768, cfg.Announcer.ReadBuffer)
	assert.Equal(t, "usd.db", cfg.Catalog.Path)
	assert.Equal(t, "msgpack", cfg.Catalog.Serializer)
	assert.Equal(t, 250*time.Millisecond, cfg.Catalog.Debounce)
	assert.Equal(t, "", cfg.Metrics.Address)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
env: prod
announcer:
  group: 239.1.2.3
  port: 9999
  interface: eth0
  send_delay: 1ms
  disable_loopback: true
catalog:
  path: /var/lib/usd/catalog.db
metrics:
  address: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "239.1.2.3", cfg.Announcer.Group)
	assert.Equal(t, 9999, cfg.Announcer.Port)
	assert.Equal(t, "eth0", cfg.Announcer.Interface)
	assert.Equal(t, time.Millisecond, cfg.Announcer.SendDelay)
	assert.True(t, cfg.Announcer.DisableLoopback)
	assert.Equal(t, 150*time.Millisecond, cfg.Announcer.PollTimeout)
	assert.Equal(t, "/var/lib/usd/catalog.db", cfg.Catalog.Path)
	assert.Equal(t, ":9102", cfg.Metrics.Address)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "announcer:\n  port: 9999\n")
	t.Setenv("USD_PORT", "8888")
	t.Setenv("ENV", "dev")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8888, cfg.Announcer.Port)
	assert.Equal(t, "dev", cfg.Env)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")

	_, err = Load(writeConfig(t, "announcer:\n  port: [1, 2]\n"))
	assert.Error(t, err)
}

func TestFetchConfigPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/usd/env.yaml")

	assert.Equal(t, "/etc/usd/flag.yaml", FetchConfigPath("/etc/usd/flag.yaml"))
	assert.Equal(t, "/etc/usd/env.yaml", FetchConfigPath(""))
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
