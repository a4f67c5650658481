package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/api/trading/modeler", cfg.BasePath)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.Store.Watch)
	assert.Nil(t, cfg.ProxyURL)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	yml := `
server:
  port: 8080
  base_path: api/positions/
  shutdown_timeout: 3s
store:
  driver: sqlite
  dsn: positions.db
  watch: false
proxy:
  url: http://localhost:4200
cors:
  enabled: true
  allow_origins: ["http://localhost:4200"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/positions", cfg.BasePath)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "positions.db", cfg.Store.DSN)
	assert.Equal(t, "data", cfg.Store.Dir)
	assert.False(t, cfg.Store.Watch)
	require.NotNil(t, cfg.ProxyURL)
	assert.Equal(t, "localhost:4200", cfg.ProxyURL.Host)
	assert.True(t, cfg.CORS.Enabled)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.CORS.AllowOrigins)
	assert.Contains(t, cfg.CORS.AllowMethods, "PATCH")
}

func TestLoadConfigRejectsBadTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  shutdown_timeout: soon\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, SaveDefaultConfig(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseFlagsOverrides(t *testing.T) {
	dir := t.TempDir()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)

	cfg, err := parseFlags(fs, []string{
		"-config", filepath.Join(dir, "missing.yml"),
		"-p", "9000",
		"-store", "file",
		"-d", dir,
	})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, dir, cfg.Store.Dir)
}
