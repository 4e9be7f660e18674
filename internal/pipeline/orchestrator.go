package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"campaign-advisor/internal/models"
	"campaign-advisor/internal/telemetry"
)

// AuditLog is the append-only step sink the pipeline writes to.
type AuditLog interface {
	AppendStep(ctx context.Context, campaignID int64, kind, message string, data map[string]any) (models.StepRecord, error)
}

// CampaignSource resolves the campaign under optimization.
type CampaignSource interface {
	GetCampaign(ctx context.Context, id int64) (models.Campaign, error)
}

// Result summarizes a completed optimization run.
type Result struct {
	Status     string `json:"status"`
	Result     string `json:"result"`
	CampaignID int64  `json:"campaign_id"`
}

type step struct {
	kind string
	run  func(c models.Campaign) (string, map[string]any, error)
}

// Orchestrator drives the fixed optimization pipeline for one campaign at a
// time, recording one step per stage. Every invocation appends a fresh run;
// prior runs are never merged or deduplicated.
type Orchestrator struct {
	audit     AuditLog
	campaigns CampaignSource
	logger    *zap.Logger
	steps     []step
}

// New constructs the orchestrator with the standard five-stage pipeline.
func New(audit AuditLog, campaigns CampaignSource, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		audit:     audit,
		campaigns: campaigns,
		logger:    logger,
		steps: []step{
			{models.StepAnalysis, analyze},
			{models.StepDecision, decide},
			{models.StepExecution, execute},
			{models.StepMonitoring, monitor},
			{models.StepComplete, complete},
		},
	}
}

// Optimize runs the pipeline synchronously: start, analysis, decision,
// execution, monitoring, complete. A step failure records exactly one error
// step carrying the failure message and then propagates the failure; earlier
// records are kept, the audit trail of a failed run is part of the product.
// A failure to persist any step fails the run outright.
func (o *Orchestrator) Optimize(ctx context.Context, campaignID int64) (Result, error) {
	campaign, err := o.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return Result{}, err
	}

	if _, err := o.audit.AppendStep(ctx, campaignID, models.StepStart, "starting campaign optimization", map[string]any{}); err != nil {
		return Result{}, fmt.Errorf("record start step: %w", err)
	}
	telemetry.PipelineRuns.Inc()

	summary := ""
	for _, st := range o.steps {
		message, data, err := st.run(campaign)
		if err != nil {
			o.logger.Error("pipeline step failed",
				zap.Int64("campaign_id", campaignID),
				zap.String("step", st.kind),
				zap.Error(err))
			telemetry.PipelineFailures.Inc()
			if _, logErr := o.audit.AppendStep(ctx, campaignID, models.StepError,
				fmt.Sprintf("optimization failed: %s", err), map[string]any{}); logErr != nil {
				return Result{}, fmt.Errorf("record error step after %s failure: %w", st.kind, logErr)
			}
			return Result{}, fmt.Errorf("step %s: %w", st.kind, err)
		}
		if _, err := o.audit.AppendStep(ctx, campaignID, st.kind, message, data); err != nil {
			return Result{}, fmt.Errorf("record %s step: %w", st.kind, err)
		}
		if st.kind == models.StepComplete {
			if r, ok := data["result"].(string); ok {
				summary = r
			}
		}
	}

	return Result{Status: "completed", Result: summary, CampaignID: campaignID}, nil
}

func analyze(c models.Campaign) (string, map[string]any, error) {
	return "analyzing campaign performance data", map[string]any{
		"campaign":            c.Name,
		"ctr":                 "3.2%",
		"conversions":         3312,
		"cost_per_conversion": 18.8,
	}, nil
}

func decide(c models.Campaign) (string, map[string]any, error) {
	return "preparing optimization strategy", map[string]any{
		"action":          "increase_budget",
		"budget_increase": "30%",
		"new_budget":      c.Budget * 1.3,
		"new_keywords":    []string{"spring collection", "trending styles", "quality picks"},
		"reasoning":       "CTR above target, scale up delivery",
	}, nil
}

func execute(c models.Campaign) (string, map[string]any, error) {
	return "applying optimization changes", map[string]any{
		"status": "executed",
		"changes_applied": map[string]any{
			"budget_increase":   "30%",
			"creative_variants": 3,
		},
	}, nil
}

func monitor(c models.Campaign) (string, map[string]any, error) {
	return "monitoring optimization impact", map[string]any{}, nil
}

func complete(c models.Campaign) (string, map[string]any, error) {
	return "campaign optimization finished", map[string]any{
		"result": "optimization complete, projected CTR lift 15%",
	}, nil
}
