package config

import (
	"strings"
	"time"

	aicore "github.com/stake-plus/forum-triage/src/ai/core"
)

// AIConfig holds AI-related configuration
type AIConfig struct {
	Provider     string
	OpenAIKey    string
	ClaudeKey    string
	MistralKey   string
	BaseURL      string
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	Enabled      bool
}

// LoadAIConfig loads AI configuration. An empty system prompt leaves the oracle's
// built-in prompt in place.
func LoadAIConfig() AIConfig {
	provider := strings.ToLower(GetSetting("ai_provider", "AI_PROVIDER", "mistral"))
	return AIConfig{
		Provider:     provider,
		OpenAIKey:    GetSetting("openai_api_key", "OPENAI_API_KEY", ""),
		ClaudeKey:    GetSetting("claude_api_key", "CLAUDE_API_KEY", ""),
		MistralKey:   GetSetting("mistral_api_key", "MISTRAL_API_KEY", ""),
		BaseURL:      GetSetting("ai_base_url", "AI_BASE_URL", ""),
		SystemPrompt: GetSetting("ai_system_prompt", "AI_SYSTEM_PROMPT", ""),
		Model:        aicore.ResolveModelName(provider, GetSetting("ai_model", "AI_MODEL", "")),
		Temperature:  getFloatSetting("ai_temperature", "AI_TEMPERATURE", 0),
		MaxTokens:    getIntSetting("ai_max_tokens", "AI_MAX_TOKENS", 0),
		Timeout:      getSecondsSetting("ai_timeout_seconds", "AI_TIMEOUT_SECONDS", 60*time.Second),
		Enabled:      getBoolSetting("enable_ai_probe", "ENABLE_AI_PROBE", true),
	}
}

// FactoryConfig converts the settings into provider factory input.
func (c AIConfig) FactoryConfig() aicore.FactoryConfig {
	return aicore.FactoryConfig{
		Provider:            c.Provider,
		SystemPrompt:        c.SystemPrompt,
		Model:               c.Model,
		Temperature:         c.Temperature,
		MaxCompletionTokens: c.MaxTokens,
		Timeout:             c.Timeout,
		OpenAIKey:           c.OpenAIKey,
		ClaudeKey:           c.ClaudeKey,
		MistralKey:          c.MistralKey,
		BaseURL:             c.BaseURL,
	}
}

// Options returns per-call options matching the configuration.
func (c AIConfig) Options() aicore.Options {
	return aicore.Options{
		Model:               c.Model,
		Temperature:         c.Temperature,
		MaxCompletionTokens: c.MaxTokens,
		SystemPrompt:        c.SystemPrompt,
	}
}
