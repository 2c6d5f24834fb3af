package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stake-plus/forum-triage/src/ai/core"
	"github.com/stake-plus/forum-triage/src/webclient"
)

const (
	defaultModel       = "claude-haiku-4-5"
	defaultMaxTokens   = 1024
	defaultTemperature = 0.2
	requestTimeout     = 60 * time.Second
)

func init() {
	core.RegisterProvider("claude", NewClient, "anthropic")
}

type client struct {
	api      sdk.Client
	defaults core.Options
}

// NewClient constructs an Anthropic-backed implementation of core.Client.
func NewClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.ClaudeKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.ClaudeKey),
		option.WithHTTPClient(webclient.NewDefault(timeout)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &client{
		api: sdk.NewClient(opts...),
		defaults: core.Options{
			Model:               valueOrDefault(cfg.Model, defaultModel),
			Temperature:         orFloat(cfg.Temperature, defaultTemperature),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, defaultMaxTokens),
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := core.Merge(c.defaults, opts)

	params := sdk.MessageNewParams{
		Model:       sdk.Model(merged.Model),
		MaxTokens:   int64(merged.MaxCompletionTokens),
		Temperature: sdk.Float(merged.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(input)),
		},
	}
	if strings.TrimSpace(merged.SystemPrompt) != "" {
		params.System = []sdk.TextBlockParam{{Text: merged.SystemPrompt}}
	}

	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return text, nil
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
