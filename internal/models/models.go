package models

import (
	"time"
)

// Step kinds recorded by the optimization pipeline. The vocabulary is open:
// the store accepts kinds outside this list, these are the ones the engine
// itself produces.
const (
	StepStart      = "start"
	StepAnalysis   = "analysis"
	StepDecision   = "decision"
	StepExecution  = "execution"
	StepMonitoring = "monitoring"
	StepComplete   = "complete"
	StepError      = "error"
)

// AdviceStatus enumerates lifecycle states persisted in Postgres.
const (
	AdvicePending  = "pending"
	AdviceApproved = "approved"
	AdviceRejected = "rejected"
	AdviceExecuted = "executed"
)

// Derived decision-node presentation statuses.
const (
	NodeCompleted  = "completed"
	NodeInProgress = "in_progress"
	NodeError      = "error"
)

// CampaignStatus values accepted on the campaign boundary.
const (
	CampaignCreated   = "created"
	CampaignRunning   = "running"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

// StepRecord is one immutable audit-log entry for a campaign. Rows are only
// ever inserted; ordering within a campaign is (recorded_at, id).
type StepRecord struct {
	ID         int64          `json:"id"`
	CampaignID int64          `json:"campaign_id"`
	Kind       string         `json:"kind"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// DecisionNode is the derived, read-only view of a StepRecord inside a
// reconstructed decision chain. It is never stored.
type DecisionNode struct {
	ID          int            `json:"id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Input       map[string]any `json:"input"`
	Output      map[string]any `json:"output"`
}

// LogEntry is the "latest first" operational projection of a StepRecord.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// AdviceRecord is a proposed action routed through the approval lifecycle.
// CampaignID is nil for cross-campaign advice.
type AdviceRecord struct {
	ID         string     `json:"id"`
	CampaignID *int64     `json:"campaign_id,omitempty"`
	Type       string     `json:"type"`
	Content    string     `json:"content"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ApprovedBy *string    `json:"approved_by,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// ExecutionRecord is the immutable proof that an AdviceRecord was executed.
// Exactly one exists per executed advice.
type ExecutionRecord struct {
	ID         string    `json:"id"`
	AdviceID   string    `json:"advice_id"`
	Result     string    `json:"result"`
	ExecutedAt time.Time `json:"executed_at"`
}

// IndustryBrief is an append-only point-in-time snapshot of external context.
type IndustryBrief struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Content    string    `json:"content"`
	RawData    *string   `json:"raw_data,omitempty"`
	ArchiveRef *string   `json:"archive_ref,omitempty"`
}

// Campaign is the slice of campaign storage the engine needs for prompts and
// pipeline payloads.
type Campaign struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Product   string    `json:"product"`
	Objective string    `json:"objective"`
	Budget    float64   `json:"budget"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidCampaignStatus reports whether s is part of the campaign vocabulary.
func ValidCampaignStatus(s string) bool {
	switch s {
	case CampaignCreated, CampaignRunning, CampaignPaused, CampaignCompleted:
		return true
	}
	return false
}

// ValidAdviceStatus reports whether s is a known advice lifecycle state.
func ValidAdviceStatus(s string) bool {
	switch s {
	case AdvicePending, AdviceApproved, AdviceRejected, AdviceExecuted:
		return true
	}
	return false
}
