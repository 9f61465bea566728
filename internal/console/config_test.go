package console

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClientConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
	assert.Equal(t, int64(500), cfg.Player.DefaultBuyIn)
	assert.Equal(t, "warn", cfg.UI.LogLevel)
}

func TestLoadConfigFull(t *testing.T) {
	path := writeClientConfig(t, `
server {
  url = "https://cards.example.com"
}

player {
  token          = "alice"
  default_buy_in = 2000
}

ui {
  log_level = "debug"
  log_file  = "/tmp/client.log"
}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://cards.example.com", cfg.Server.URL)
	assert.Equal(t, "alice", cfg.Player.Token)
	assert.Equal(t, int64(2000), cfg.Player.DefaultBuyIn)
	assert.Equal(t, "debug", cfg.UI.LogLevel)
	assert.Equal(t, "/tmp/client.log", cfg.UI.LogFile)
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	path := writeClientConfig(t, `
player {
  token = "alice"
}
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
	assert.Equal(t, int64(500), cfg.Player.DefaultBuyIn)
	assert.Equal(t, "cardroom-client.log", cfg.UI.LogFile)
}

func TestLoadConfigBadSyntax(t *testing.T) {
	path := writeClientConfig(t, `server { url = `)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token")
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Player.Token = "alice"
		cfg.UI.LogLevel = "loud"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log level")
	})

	t.Run("valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Player.Token = "alice"
		assert.NoError(t, cfg.Validate())
	})
}
