// Package openai implements core.Client over the Chat Completions API. Any
// OpenAI-compatible endpoint can be targeted through NewCompatibleClient.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/stake-plus/forum-triage/src/ai/core"
	"github.com/stake-plus/forum-triage/src/webclient"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
	requestTimeout     = 60 * time.Second
)

func init() {
	core.RegisterProvider("openai", newClient, "gpt")
}

type client struct {
	name     string
	api      sdk.Client
	defaults core.Options
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	return NewCompatibleClient("openai", cfg, cfg.OpenAIKey, cfg.BaseURL, defaultModel)
}

// NewCompatibleClient builds a chat client for an OpenAI-compatible API. name
// prefixes errors; an empty baseURL targets api.openai.com.
func NewCompatibleClient(name string, cfg core.FactoryConfig, apiKey, baseURL, model string) (core.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s: API key not configured", name)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(webclient.NewDefault(timeout)),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &client{
		name: name,
		api:  sdk.NewClient(opts...),
		defaults: core.Options{
			Model:               valueOrDefault(cfg.Model, model),
			Temperature:         orFloat(cfg.Temperature, defaultTemperature),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, defaultMaxTokens),
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := core.Merge(c.defaults, opts)

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(merged.SystemPrompt) != "" {
		messages = append(messages, sdk.SystemMessage(merged.SystemPrompt))
	}
	messages = append(messages, sdk.UserMessage(input))

	resp, err := c.api.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:               merged.Model,
		Messages:            messages,
		Temperature:         sdk.Float(merged.Temperature),
		MaxCompletionTokens: sdk.Int(int64(merged.MaxCompletionTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("%s: chat completion: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", c.name)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func valueOrDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
