package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20, cfg.Agents.Defaults.MaxToolIterations)
	assert.Equal(t, "gpt-4o", cfg.Agents.Defaults.Model)
	assert.Equal(t, 60, cfg.Tools.Exec.Timeout)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Agents.Defaults.Model)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "agents": {"defaults": {"model": "deepseek-chat", "maxToolIterations": 5}},
  "channels": {"telegram": {"enabled": true, "token": "tg-token"}}
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", cfg.Agents.Defaults.Model)
	assert.Equal(t, 5, cfg.Agents.Defaults.MaxToolIterations)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, "tg-token", cfg.Channels.Telegram.Token)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"agents": {"defaults": {"model": "from-file"}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("MICROCLAW_MODEL", "from-env")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MICROCLAW_TELEGRAM_TOKEN", "env-token")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Agents.Defaults.Model)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "env-token", cfg.Channels.Telegram.Token)
}

func TestLoadConfigRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
