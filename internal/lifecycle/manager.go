// Package lifecycle owns the advice state machine:
// pending -> approved | rejected, approved -> executed. Rejected and executed
// are terminal. Transitions are compare-and-set in the store, so a lost race
// surfaces as ErrInvalidState rather than a double transition.
package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"campaign-advisor/internal/models"
	"campaign-advisor/internal/telemetry"
)

// Store is the slice of advice persistence the manager needs. The store
// implements the compare-and-set semantics; the manager adds validation,
// defaults, and audit-trail side effects.
type Store interface {
	CreateAdvice(ctx context.Context, campaignID *int64, kind, content string) (models.AdviceRecord, error)
	ReviewAdvice(ctx context.Context, id, status string, approvedBy *string) (models.AdviceRecord, error)
	ExecuteAdvice(ctx context.Context, id, result string) (models.ExecutionRecord, models.AdviceRecord, error)
	ListAdvice(ctx context.Context, campaignID *int64, status string) ([]models.AdviceRecord, error)
}

// AuditLog records lifecycle transitions of campaign-scoped advice on the
// campaign's audit trail.
type AuditLog interface {
	AppendStep(ctx context.Context, campaignID int64, kind, message string, data map[string]any) (models.StepRecord, error)
}

// Manager is the single writer for advice state transitions.
type Manager struct {
	store  Store
	audit  AuditLog
	logger *zap.Logger
}

// New constructs the manager.
func New(store Store, audit AuditLog, logger *zap.Logger) *Manager {
	return &Manager{store: store, audit: audit, logger: logger}
}

// Create records a new proposal in the pending state. Content is required;
// type defaults to "general".
func (m *Manager) Create(ctx context.Context, campaignID *int64, kind, content string) (models.AdviceRecord, error) {
	if strings.TrimSpace(content) == "" {
		return models.AdviceRecord{}, fmt.Errorf("advice content is required: %w", models.ErrValidation)
	}
	if kind == "" {
		kind = "general"
	}
	advice, err := m.store.CreateAdvice(ctx, campaignID, kind, content)
	if err != nil {
		return models.AdviceRecord{}, err
	}
	telemetry.AdviceCreated.Inc()
	return advice, nil
}

// Approve resolves a pending advice record to approved or rejected, stamping
// the reviewer. Only pending records are eligible.
func (m *Manager) Approve(ctx context.Context, id string, approve bool, approvedBy *string) (models.AdviceRecord, error) {
	status := models.AdviceRejected
	if approve {
		status = models.AdviceApproved
	}
	advice, err := m.store.ReviewAdvice(ctx, id, status, approvedBy)
	if err != nil {
		return models.AdviceRecord{}, err
	}
	telemetry.AdviceReviewed.Inc()

	if advice.CampaignID != nil {
		m.recordStep(ctx, *advice.CampaignID, models.StepDecision,
			fmt.Sprintf("advice %s %s", advice.ID, status),
			map[string]any{"advice_id": advice.ID, "status": status})
	}
	return advice, nil
}

// Execute moves an approved advice record to executed and returns the
// execution record created atomically with the transition. A record that is
// not approved, including one already executed, yields ErrInvalidState and no
// execution record.
func (m *Manager) Execute(ctx context.Context, id, result string) (models.ExecutionRecord, error) {
	exec, advice, err := m.store.ExecuteAdvice(ctx, id, result)
	if err != nil {
		return models.ExecutionRecord{}, err
	}
	telemetry.AdviceExecuted.Inc()

	if advice.CampaignID != nil {
		m.recordStep(ctx, *advice.CampaignID, models.StepExecution,
			fmt.Sprintf("advice %s executed", advice.ID),
			map[string]any{"advice_id": advice.ID, "result": exec.Result})
	}
	return exec, nil
}

// List returns advice records newest first, optionally filtered by campaign
// and status. An unknown status filter is a caller error.
func (m *Manager) List(ctx context.Context, campaignID *int64, status string) ([]models.AdviceRecord, error) {
	if status != "" && !models.ValidAdviceStatus(status) {
		return nil, fmt.Errorf("status filter %q: %w", status, models.ErrValidation)
	}
	return m.store.ListAdvice(ctx, campaignID, status)
}

// recordStep appends the transition to the campaign trail. The transition
// has already committed at this point, so a trail write failure is surfaced
// in the logs rather than unwinding the transition.
func (m *Manager) recordStep(ctx context.Context, campaignID int64, kind, message string, data map[string]any) {
	if _, err := m.audit.AppendStep(ctx, campaignID, kind, message, data); err != nil {
		m.logger.Error("record advice transition step",
			zap.Int64("campaign_id", campaignID),
			zap.String("step", kind),
			zap.Error(err))
	}
}
