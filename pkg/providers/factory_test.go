package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microclaw/microclaw/pkg/config"
)

func TestNewProviderNoKeysFails(t *testing.T) {
	_, err := NewProvider(config.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}

func TestNewProviderPicksFirstConfiguredKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.DeepSeek.APIKey = "sk-ds"
	cfg.Providers.Groq.APIKey = "sk-groq"

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewProviderExplicitNameWins(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Provider = "groq"
	cfg.Providers.DeepSeek.APIKey = "sk-ds"
	cfg.Providers.Groq.APIKey = "sk-groq"

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewProviderExplicitNameWithoutKeyFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Provider = "zhipu"

	_, err := NewProvider(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}

func TestNewProviderUnknownNameFails(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Provider = "quantum"

	_, err := NewProvider(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestDefaultModelFallsBackWhenUnset(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Model = ""
	cfg.Providers.OpenAI.APIKey = "sk-test"

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, p.DefaultModel())
}
