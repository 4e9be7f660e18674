// Package decision folds a campaign's immutable step records into derived,
// read-only views: the numbered decision chain and the latest-first log
// projection. It never writes and never invents history; an empty record set
// produces an empty view, and any placeholder content is the presentation
// layer's business.
package decision

import (
	"strings"

	"campaign-advisor/internal/models"
)

var titles = map[string]string{
	models.StepStart:      "Start",
	models.StepAnalysis:   "Data Analysis",
	models.StepDecision:   "Decision",
	models.StepExecution:  "Execution",
	models.StepMonitoring: "Monitoring",
	models.StepComplete:   "Complete",
	models.StepError:      "Error",
}

// BuildChain reconstructs the decision chain from step records in append
// order. Nodes are numbered from 1 and map 1:1 to the input. Status is
// derived: error steps are error, everything else is completed, except the
// final node which is presented as in_progress while the pipeline has not
// reached a terminal step.
func BuildChain(steps []models.StepRecord) []models.DecisionNode {
	nodes := make([]models.DecisionNode, 0, len(steps))
	for i, step := range steps {
		status := models.NodeCompleted
		switch {
		case step.Kind == models.StepError:
			status = models.NodeError
		case i == len(steps)-1 && step.Kind != models.StepComplete:
			status = models.NodeInProgress
		}
		input := step.Data
		if input == nil {
			input = map[string]any{}
		}
		nodes = append(nodes, models.DecisionNode{
			ID:          i + 1,
			Type:        step.Kind,
			Title:       titleFor(step.Kind),
			Description: step.Message,
			Status:      status,
			Timestamp:   step.RecordedAt,
			Input:       input,
			Output:      map[string]any{"message": step.Message},
		})
	}
	return nodes
}

// BuildLogView projects step records (given latest first) into operational
// log entries. Error steps surface at error level, everything else as info.
func BuildLogView(steps []models.StepRecord) []models.LogEntry {
	entries := make([]models.LogEntry, 0, len(steps))
	for _, step := range steps {
		level := "info"
		if step.Kind == models.StepError {
			level = "error"
		}
		entries = append(entries, models.LogEntry{
			Timestamp: step.RecordedAt,
			Level:     level,
			Component: titleFor(step.Kind),
			Message:   step.Message,
			Data:      step.Data,
		})
	}
	return entries
}

func titleFor(kind string) string {
	if t, ok := titles[kind]; ok {
		return t
	}
	if kind == "" {
		return "Step"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}
