package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-advisor/internal/models"
)

func stepsFixture(kinds ...string) []models.StepRecord {
	base := time.Date(2026, 3, 22, 14, 30, 0, 0, time.UTC)
	steps := make([]models.StepRecord, 0, len(kinds))
	for i, kind := range kinds {
		steps = append(steps, models.StepRecord{
			ID:         int64(i + 1),
			CampaignID: 42,
			Kind:       kind,
			Message:    "step " + kind,
			RecordedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	return steps
}

func TestBuildChainCompletedRun(t *testing.T) {
	steps := stepsFixture(
		models.StepStart, models.StepAnalysis, models.StepDecision,
		models.StepExecution, models.StepMonitoring, models.StepComplete,
	)

	nodes := BuildChain(steps)
	require.Len(t, nodes, 6)
	for i, node := range nodes {
		assert.Equal(t, i+1, node.ID)
		assert.Equal(t, steps[i].Kind, node.Type)
		assert.Equal(t, models.NodeCompleted, node.Status)
		assert.Equal(t, steps[i].Message, node.Description)
		assert.Equal(t, map[string]any{"message": steps[i].Message}, node.Output)
	}
}

func TestBuildChainLastNodeInProgress(t *testing.T) {
	nodes := BuildChain(stepsFixture(models.StepStart, models.StepAnalysis, models.StepExecution))
	require.Len(t, nodes, 3)
	assert.Equal(t, models.NodeCompleted, nodes[0].Status)
	assert.Equal(t, models.NodeCompleted, nodes[1].Status)
	assert.Equal(t, models.NodeInProgress, nodes[2].Status)
}

func TestBuildChainErrorIsTerminal(t *testing.T) {
	nodes := BuildChain(stepsFixture(models.StepStart, models.StepAnalysis, models.StepError))
	require.Len(t, nodes, 3)
	assert.Equal(t, models.NodeError, nodes[2].Status)
	assert.Equal(t, "Error", nodes[2].Title)
}

func TestBuildChainEmptyHistory(t *testing.T) {
	nodes := BuildChain(nil)
	require.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestBuildChainIdempotent(t *testing.T) {
	steps := stepsFixture(models.StepStart, models.StepAnalysis, models.StepError)
	assert.Equal(t, BuildChain(steps), BuildChain(steps))
}

func TestBuildChainTitlesAndInput(t *testing.T) {
	steps := stepsFixture(models.StepAnalysis, "custom_review")
	steps[0].Data = map[string]any{"ctr": "3.2%"}

	nodes := BuildChain(steps)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Data Analysis", nodes[0].Title)
	assert.Equal(t, map[string]any{"ctr": "3.2%"}, nodes[0].Input)
	// Unknown kinds fall back to capitalization and an empty input map.
	assert.Equal(t, "Custom_review", nodes[1].Title)
	assert.Equal(t, map[string]any{}, nodes[1].Input)
}

func TestBuildLogView(t *testing.T) {
	steps := stepsFixture(models.StepError, models.StepDecision, models.StepStart)

	entries := BuildLogView(steps)
	require.Len(t, entries, 3)
	assert.Equal(t, "error", entries[0].Level)
	assert.Equal(t, "Error", entries[0].Component)
	assert.Equal(t, "info", entries[1].Level)
	assert.Equal(t, "Decision", entries[1].Component)
	assert.Equal(t, steps[2].Message, entries[2].Message)
}
