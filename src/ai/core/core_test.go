package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoClient struct{ cfg FactoryConfig }

func (e echoClient) Respond(ctx context.Context, input string, opts Options) (string, error) {
	return e.cfg.Model + ":" + input, nil
}

func TestNewClientUsesRegisteredFactory(t *testing.T) {
	RegisterProvider("echo-test", func(cfg FactoryConfig) (Client, error) {
		return echoClient{cfg: cfg}, nil
	}, "Echo-Alias")

	client, err := NewClient(FactoryConfig{Provider: "ECHO-ALIAS", Model: "m1"})
	require.NoError(t, err)
	reply, err := client.Respond(context.Background(), "hi", Options{})
	require.NoError(t, err)
	assert.Equal(t, "m1:hi", reply)
	assert.Contains(t, Registered(), "echo-alias")
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(FactoryConfig{Provider: "nope"})
	assert.ErrorContains(t, err, `provider "nope" not registered`)
}

func TestMergeKeepsDefaultsForZeroFields(t *testing.T) {
	defaults := Options{Model: "base", Temperature: 0.2, MaxCompletionTokens: 512, SystemPrompt: "sys"}
	merged := Merge(defaults, Options{Model: "override"})
	assert.Equal(t, Options{Model: "override", Temperature: 0.2, MaxCompletionTokens: 512, SystemPrompt: "sys"}, merged)
}

func TestResolveModelName(t *testing.T) {
	assert.Equal(t, "custom", ResolveModelName("openai", " custom "))
	assert.Equal(t, "mistral-large-latest", ResolveModelName("Mistral", ""))
	assert.Equal(t, "unknown", ResolveModelName("other", ""))
}
