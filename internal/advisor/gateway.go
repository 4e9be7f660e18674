// Package advisor produces free-text delivery advice for a campaign from an
// ordered list of candidate text-generation backends, plus best-effort
// acquisition of external industry context.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"campaign-advisor/internal/config"
	"campaign-advisor/internal/models"
	"campaign-advisor/internal/telemetry"
)

// NotConfiguredText is returned as a valid, non-error advice body when no
// backend credential is configured. "No backend available" is an expected
// state, not a failure.
const NotConfiguredText = "no advisory backend is configured; set OPENAI_API_KEY or DEEPSEEK_API_KEY to enable advice generation"

// ContextItem is one external industry signal fed into the prompt.
type ContextItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Advice is the gateway's output. Backend is empty for the not-configured
// sentinel.
type Advice struct {
	Text    string `json:"text"`
	Backend string `json:"backend,omitempty"`
}

// Backend generates text for a prompt. Implementations own their timeout.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Gateway dispatches to the first candidate backend; candidates are listed in
// configuration preference order at construction, so adding a vendor means
// adding a candidate, not touching call sites.
type Gateway struct {
	backends []Backend
	logger   *zap.Logger
}

// NewGateway builds the candidate list from configuration: OpenAI first,
// DeepSeek second. Unconfigured backends are simply absent.
func NewGateway(cfg config.Config, logger *zap.Logger) *Gateway {
	backends := []Backend{}
	if cfg.OpenAIAPIKey != "" {
		backends = append(backends, NewChatBackend("openai", cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AdvisorTimeout, cfg.AdvisorMaxToken))
	}
	if cfg.DeepSeekAPIKey != "" {
		backends = append(backends, NewChatBackend("deepseek", cfg.DeepSeekBaseURL, cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.AdvisorTimeout, cfg.AdvisorMaxToken))
	}
	return &Gateway{backends: backends, logger: logger}
}

// NewGatewayWithBackends wires an explicit candidate list.
func NewGatewayWithBackends(backends []Backend, logger *zap.Logger) *Gateway {
	return &Gateway{backends: backends, logger: logger}
}

// Advise builds a prompt from the campaign and context items and asks the
// first configured backend. With no backend it returns the sentinel advice.
// A backend failure or timeout is surfaced to the caller unretried; no state
// has been created or mutated by then, so cancellation is always safe.
func (g *Gateway) Advise(ctx context.Context, campaign models.Campaign, items []ContextItem) (Advice, error) {
	if len(g.backends) == 0 {
		return Advice{Text: NotConfiguredText}, nil
	}

	backend := g.backends[0]
	prompt := buildPrompt(campaign, items)

	telemetry.BackendCalls.Inc()
	text, err := backend.Generate(ctx, prompt)
	if err != nil {
		telemetry.BackendFailures.Inc()
		g.logger.Warn("advisory backend call failed",
			zap.String("backend", backend.Name()),
			zap.Error(err))
		return Advice{}, fmt.Errorf("backend %s: %w: %w", backend.Name(), models.ErrBackendFailure, err)
	}
	return Advice{Text: text, Backend: backend.Name()}, nil
}

func buildPrompt(c models.Campaign, items []ContextItem) string {
	var sb strings.Builder
	sb.WriteString("You are an advertising delivery expert. Based on the latest industry signals and the campaign data below, produce concrete delivery advice.\n\n")
	sb.WriteString("Industry signals:\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "- %s: %s\n", item.Title, item.Summary)
	}
	sb.WriteString("\nCampaign:\n")
	fmt.Fprintf(&sb, "Name: %s\nProduct: %s\nObjective: %s\nBudget: %.2f\n", c.Name, c.Product, c.Objective, c.Budget)
	sb.WriteString("\nKeep the advice concise and actionable.")
	return sb.String()
}
