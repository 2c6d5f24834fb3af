package mistral

import (
	"github.com/stake-plus/forum-triage/src/ai/core"
	"github.com/stake-plus/forum-triage/src/ai/openai"
)

const (
	defaultModel = "mistral-large-latest"
	endpoint     = "https://api.mistral.ai/v1/"
)

func init() {
	core.RegisterProvider("mistral", newClient)
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = endpoint
	}
	return openai.NewCompatibleClient("mistral", cfg, cfg.MistralKey, baseURL, defaultModel)
}
