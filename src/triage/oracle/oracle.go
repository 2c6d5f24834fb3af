// Package oracle asks a language model whether it can answer a question outright.
package oracle

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	aicore "github.com/stake-plus/forum-triage/src/ai/core"
	"github.com/stake-plus/forum-triage/src/logging"
	"github.com/stake-plus/forum-triage/src/triage"
)

// DefaultSystemPrompt asks for a brief answer or a bare "No".
const DefaultSystemPrompt = `You are a helpful and honest research assistant for a community Q&A forum.
If you know the answer to the user's question, give a brief answer that is factually correct.
If you do not know the answer, or the question depends on information only the forum's speakers or organisers have, respond with exactly "No".`

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 60 * time.Second

// Verdict is the classified result of a probe.
type Verdict struct {
	Answer    string
	HasAnswer bool
}

// Classify turns a raw oracle reply into a verdict.
func Classify(reply string) Verdict {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || triage.IsNegativeResponse(trimmed) {
		return Verdict{}
	}
	return Verdict{Answer: trimmed, HasAnswer: true}
}

// Oracle implements triage.Oracle on top of an AI provider client.
type Oracle struct {
	client  aicore.Client
	opts    aicore.Options
	timeout time.Duration
}

var _ triage.Oracle = (*Oracle)(nil)

// New wraps client. An empty system prompt falls back to DefaultSystemPrompt.
func New(client aicore.Client, opts aicore.Options, timeout time.Duration) *Oracle {
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Oracle{client: client, opts: opts, timeout: timeout}
}

// Probe asks the model about question. Failures are reported as ErrTransport.
func (o *Oracle) Probe(ctx context.Context, question string) (string, error) {
	if o == nil || o.client == nil {
		return "", fmt.Errorf("%w: oracle not configured", triage.ErrTransport)
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	reply, err := o.client.Respond(ctx, question, o.opts)
	if err != nil {
		log.Printf("oracle: probe failed (%s)", logging.Kind(err))
		return "", fmt.Errorf("%w: oracle probe: %v", triage.ErrTransport, err)
	}
	return reply, nil
}
