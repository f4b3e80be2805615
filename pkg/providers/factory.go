package providers

import (
	"fmt"
	"strings"

	"github.com/microclaw/microclaw/pkg/config"
)

type endpoint struct {
	cfg     config.ProviderConfig
	apiBase string
}

// NewProvider selects a model backend from configuration. An explicit
// provider name wins; otherwise the first configured API key decides.
func NewProvider(cfg *config.Config) (Provider, error) {
	defaults := cfg.Agents.Defaults

	endpoints := map[string]endpoint{
		"openai":     {cfg.Providers.OpenAI, ""},
		"openrouter": {cfg.Providers.OpenRouter, "https://openrouter.ai/api/v1"},
		"deepseek":   {cfg.Providers.DeepSeek, "https://api.deepseek.com"},
		"groq":       {cfg.Providers.Groq, "https://api.groq.com/openai/v1"},
		"zhipu":      {cfg.Providers.Zhipu, "https://open.bigmodel.cn/api/paas/v4/"},
		"vllm":       {cfg.Providers.VLLM, ""},
		"gemini":     {cfg.Providers.Gemini, "https://generativelanguage.googleapis.com/v1beta/openai/"},
	}

	build := func(ep endpoint) Provider {
		apiBase := ep.cfg.APIBase
		if apiBase == "" {
			apiBase = ep.apiBase
		}
		return NewOpenAIProvider(ep.cfg.APIKey, apiBase, defaults.Model).
			WithLimits(defaults.MaxTokens, defaults.Temperature)
	}

	if name := strings.ToLower(defaults.Provider); name != "" {
		ep, ok := endpoints[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider: %s", defaults.Provider)
		}
		if ep.cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s selected but no API key configured", name)
		}
		return build(ep), nil
	}

	// Heuristic order mirrors how people usually configure this.
	for _, name := range []string{"openrouter", "deepseek", "openai", "vllm", "gemini", "zhipu", "groq"} {
		if ep := endpoints[name]; ep.cfg.APIKey != "" {
			return build(ep), nil
		}
	}

	return nil, fmt.Errorf("no API key configured for any provider")
}
