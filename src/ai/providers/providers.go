package providers

import (
	_ "github.com/stake-plus/forum-triage/src/ai/anthropic"
	_ "github.com/stake-plus/forum-triage/src/ai/mistral"
	_ "github.com/stake-plus/forum-triage/src/ai/openai"
)
