package providers

import (
	"freedomwall/internal/structures"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
webServer:
  host: 127.0.0.1
  port: 9090
persistence:
  filePath: /tmp/freedomwall.dat
  saveInterval: 45s
logger:
  level: debug
  mode: 0644
  dir: /tmp
cache:
  enabled: true
  size: 4
metrics:
  enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigProvider_LoadsFileWithDefaults(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	conf, err := NewConfigProvider(&structures.CliFlags{ConfigPath: path, DebugMode: true})
	require.NoError(t, err)

	assert.Equal(t, "FreedomWall", conf.AppName)
	assert.Equal(t, path, conf.Path)
	assert.True(t, conf.Debug)
	assert.Equal(t, "127.0.0.1", conf.WebServer.Host)
	assert.Equal(t, 9090, conf.WebServer.Port)
	assert.Equal(t, 45*time.Second, conf.Persistence.SaveInterval)
	assert.Equal(t, "memory", conf.Store.Backend)
	assert.Equal(t, "freedomWall", conf.Store.Collection)
	assert.Equal(t, 5*time.Second, conf.Cache.TTL)
	assert.True(t, conf.Metrics.Enabled)
}

func TestConfigProvider_EnvOverrides(t *testing.T) {
	path := writeConfig(t, testConfigYAML)
	t.Setenv("FW_LISTEN_PORT", "7070")
	t.Setenv("FW_LOG_LEVEL", "warn")

	conf, err := NewConfigProvider(&structures.CliFlags{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 7070, conf.WebServer.Port)
	assert.Equal(t, "warn", conf.Logger.Level)
}

func TestConfigProvider_MissingFile(t *testing.T) {
	_, err := NewConfigProvider(&structures.CliFlags{ConfigPath: filepath.Join(t.TempDir(), "absent.yml")})
	assert.Error(t, err)
}

func TestConfigProvider_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "webServer:\n  host: 127.0.0.1\n  port: 0\n")
	_, err := NewConfigProvider(&structures.CliFlags{ConfigPath: path})
	assert.Error(t, err)
}
