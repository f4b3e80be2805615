package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token" env:"TOKEN"`
	AllowFrom []string `json:"allowFrom"`
	Proxy     string   `json:"proxy,omitempty"`
}

type FeishuConfig struct {
	Enabled           bool     `json:"enabled"`
	AppID             string   `json:"appId" env:"APP_ID"`
	AppSecret         string   `json:"appSecret" env:"APP_SECRET"`
	EncryptKey        string   `json:"encryptKey" env:"ENCRYPT_KEY"`
	VerificationToken string   `json:"verificationToken" env:"VERIFICATION_TOKEN"`
	AllowFrom         []string `json:"allowFrom"`
}

type DingTalkConfig struct {
	Enabled      bool     `json:"enabled"`
	ClientID     string   `json:"clientId" env:"CLIENT_ID"`
	ClientSecret string   `json:"clientSecret" env:"CLIENT_SECRET"`
	RobotCode    string   `json:"robotCode" env:"ROBOT_CODE"`
	AllowFrom    []string `json:"allowFrom"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram" envPrefix:"MICROCLAW_TELEGRAM_"`
	Feishu   FeishuConfig   `json:"feishu" envPrefix:"MICROCLAW_FEISHU_"`
	DingTalk DingTalkConfig `json:"dingtalk" envPrefix:"MICROCLAW_DINGTALK_"`
}

type AgentDefaults struct {
	Workspace         string  `json:"workspace"`
	Model             string  `json:"model" env:"MICROCLAW_MODEL"`
	Provider          string  `json:"provider,omitempty" env:"MICROCLAW_PROVIDER"`
	MaxTokens         int     `json:"maxTokens"`
	Temperature       float64 `json:"temperature"`
	MaxToolIterations int     `json:"maxToolIterations"`
}

type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

type ProviderConfig struct {
	APIKey  string `json:"apiKey" env:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" env:"API_BASE"`
}

type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai" envPrefix:"OPENAI_"`
	OpenRouter ProviderConfig `json:"openrouter" envPrefix:"OPENROUTER_"`
	DeepSeek   ProviderConfig `json:"deepseek" envPrefix:"DEEPSEEK_"`
	Groq       ProviderConfig `json:"groq" envPrefix:"GROQ_"`
	Zhipu      ProviderConfig `json:"zhipu" envPrefix:"ZHIPU_"`
	VLLM       ProviderConfig `json:"vllm" envPrefix:"VLLM_"`
	Gemini     ProviderConfig `json:"gemini" envPrefix:"GEMINI_"`
}

type WebSearchConfig struct {
	APIKey     string `json:"apiKey" env:"BRAVE_API_KEY"`
	MaxResults int    `json:"maxResults"`
}

type WebToolsConfig struct {
	Search WebSearchConfig `json:"search"`
}

type ExecToolConfig struct {
	Timeout             int  `json:"timeout"`
	RestrictToWorkspace bool `json:"restrictToWorkspace"`
}

type ToolsConfig struct {
	Web  WebToolsConfig `json:"web"`
	Exec ExecToolConfig `json:"exec"`
}

type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Tools     ToolsConfig     `json:"tools"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:         filepath.Join(".microclaw", "workspace"),
				Model:             "gpt-4o",
				MaxTokens:         8192,
				Temperature:       0.7,
				MaxToolIterations: 20,
			},
		},
		Tools: ToolsConfig{
			Web: WebToolsConfig{
				Search: WebSearchConfig{MaxResults: 5},
			},
			Exec: ExecToolConfig{
				Timeout:             60,
				RestrictToWorkspace: false,
			},
		},
	}
}

// LoadConfig loads the configuration from path (default
// .microclaw/config.json), then applies environment variable overrides so
// secrets never need to live in the file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(".microclaw", "config.json")
	}

	cfg := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	return cfg, nil
}
