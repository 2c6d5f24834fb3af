package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	aicore "github.com/stake-plus/forum-triage/src/ai/core"
	_ "github.com/stake-plus/forum-triage/src/ai/providers"
	sharedconfig "github.com/stake-plus/forum-triage/src/config"
	"github.com/stake-plus/forum-triage/src/triage/oracle"
)

const defaultProbeQuestion = "What is the capital of France?"

var probeCmd = &cobra.Command{
	Use:   "probe [question]",
	Short: "Ask the answer oracle a question through one or more providers",
	Long: `Send a question through the answer probe exactly as the triage workflow
would and print the classified verdict.

Examples:
  forum-triage probe "Is the keynote recorded?"
  forum-triage probe --providers all --max-bytes 400`,
	RunE: func(cmd *cobra.Command, args []string) error {
		providersFlag, _ := cmd.Flags().GetString("providers")
		modelFlag, _ := cmd.Flags().GetString("model")
		systemFlag, _ := cmd.Flags().GetString("system")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		maxBytes, _ := cmd.Flags().GetInt("max-bytes")

		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			question = defaultProbeQuestion
		}

		aiCfg := sharedconfig.LoadAIConfig()
		providers := resolveProviders(providersFlag, aiCfg.Provider)
		if len(providers) == 0 {
			return fmt.Errorf("no providers specified")
		}

		for _, provider := range providers {
			if err := runProbe(provider, question, modelFlag, systemFlag, timeout, maxBytes, aiCfg); err != nil {
				log.Printf("[%s] ERROR: %v", provider, err)
			}
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().String("providers", "", "Comma-separated provider list or 'all' (default the configured provider)")
	probeCmd.Flags().String("model", "", "Override model name")
	probeCmd.Flags().String("system", "", "Override system prompt")
	probeCmd.Flags().Duration("timeout", 45*time.Second, "Per-provider timeout")
	probeCmd.Flags().Int("max-bytes", 1200, "Maximum bytes of output to print per response (0=unlimited)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(provider, question, model, system string, timeout time.Duration, maxBytes int, aiCfg sharedconfig.AIConfig) error {
	cfg := aiCfg
	cfg.Provider = provider
	cfg.Model = aicore.ResolveModelName(provider, model)
	if system != "" {
		cfg.SystemPrompt = system
	}

	client, err := aicore.NewClient(cfg.FactoryConfig())
	if err != nil {
		return fmt.Errorf("client init: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	reply, err := oracle.New(client, cfg.Options(), timeout).Probe(ctx, question)
	if err != nil {
		return err
	}
	verdict := oracle.Classify(reply)

	fmt.Printf("=== %s (%s) ===\n", provider, cfg.Model)
	if !verdict.HasAnswer {
		fmt.Printf("no answer (%.1fs)\n", time.Since(start).Seconds())
		return nil
	}
	fmt.Printf("answer ✅ (%.1fs)\n%s\n", time.Since(start).Seconds(), truncate(verdict.Answer, maxBytes))
	return nil
}

func resolveProviders(raw, fallback string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "all") {
		return aicore.Registered()
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	var out []string
	seen := map[string]struct{}{}
	for _, p := range parts {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:limit]) + "...(truncated)"
}
