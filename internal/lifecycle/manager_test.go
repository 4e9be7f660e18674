package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campaign-advisor/internal/models"
)

// memStore mirrors the Postgres store's compare-and-set semantics in memory
// so the state machine can be exercised without a database.
type memStore struct {
	mu         sync.Mutex
	seq        int
	advice     map[string]models.AdviceRecord
	executions map[string]models.ExecutionRecord // keyed by advice id
}

func newMemStore() *memStore {
	return &memStore{
		advice:     map[string]models.AdviceRecord{},
		executions: map[string]models.ExecutionRecord{},
	}
}

func (s *memStore) CreateAdvice(_ context.Context, campaignID *int64, kind, content string) (models.AdviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	rec := models.AdviceRecord{
		ID:         fmt.Sprintf("advice-%d", s.seq),
		CampaignID: campaignID,
		Type:       kind,
		Content:    content,
		Status:     models.AdvicePending,
		CreatedAt:  time.Now().UTC().Add(time.Duration(s.seq) * time.Millisecond),
	}
	s.advice[rec.ID] = rec
	return rec, nil
}

func (s *memStore) ReviewAdvice(_ context.Context, id, status string, approvedBy *string) (models.AdviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.advice[id]
	if !ok {
		return models.AdviceRecord{}, fmt.Errorf("advice %s: %w", id, models.ErrNotFound)
	}
	if rec.Status != models.AdvicePending {
		return models.AdviceRecord{}, fmt.Errorf("advice %s is %s: %w", id, rec.Status, models.ErrInvalidState)
	}
	rec.Status = status
	rec.ApprovedBy = approvedBy
	s.advice[id] = rec
	return rec, nil
}

func (s *memStore) ExecuteAdvice(_ context.Context, id, result string) (models.ExecutionRecord, models.AdviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.advice[id]
	if !ok {
		return models.ExecutionRecord{}, models.AdviceRecord{}, fmt.Errorf("advice %s: %w", id, models.ErrNotFound)
	}
	if rec.Status != models.AdviceApproved {
		return models.ExecutionRecord{}, models.AdviceRecord{}, fmt.Errorf("advice %s is %s: %w", id, rec.Status, models.ErrInvalidState)
	}
	now := time.Now().UTC()
	rec.Status = models.AdviceExecuted
	rec.ExecutedAt = &now
	s.advice[id] = rec
	if result == "" {
		result = "advice executed: " + rec.Content
	}
	exec := models.ExecutionRecord{ID: "exec-" + id, AdviceID: id, Result: result, ExecutedAt: now}
	s.executions[id] = exec
	return exec, rec, nil
}

func (s *memStore) ListAdvice(_ context.Context, campaignID *int64, status string) ([]models.AdviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.AdviceRecord{}
	for _, rec := range s.advice {
		if campaignID != nil && (rec.CampaignID == nil || *rec.CampaignID != *campaignID) {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type stepSink struct {
	mu    sync.Mutex
	steps []models.StepRecord
}

func (s *stepSink) AppendStep(_ context.Context, campaignID int64, kind, message string, data map[string]any) (models.StepRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := models.StepRecord{ID: int64(len(s.steps) + 1), CampaignID: campaignID, Kind: kind, Message: message, Data: data, RecordedAt: time.Now().UTC()}
	s.steps = append(s.steps, rec)
	return rec, nil
}

func newManager() (*Manager, *memStore, *stepSink) {
	st := newMemStore()
	sink := &stepSink{}
	return New(st, sink, zap.NewNop()), st, sink
}

func ptr[T any](v T) *T { return &v }

func TestCreateRequiresContent(t *testing.T) {
	m, _, _ := newManager()

	_, err := m.Create(context.Background(), nil, "budget", "   ")
	require.ErrorIs(t, err, models.ErrValidation)

	advice, err := m.Create(context.Background(), ptr[int64](1), "budget", "increase 30%")
	require.NoError(t, err)
	assert.Equal(t, models.AdvicePending, advice.Status)
	assert.Equal(t, "budget", advice.Type)
}

func TestCreateDefaultsType(t *testing.T) {
	m, _, _ := newManager()
	advice, err := m.Create(context.Background(), nil, "", "tune keywords")
	require.NoError(t, err)
	assert.Equal(t, "general", advice.Type)
}

func TestRejectedAdviceCannotExecute(t *testing.T) {
	m, _, _ := newManager()
	advice, err := m.Create(context.Background(), ptr[int64](1), "budget", "increase 30%")
	require.NoError(t, err)

	reviewed, err := m.Approve(context.Background(), advice.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AdviceRejected, reviewed.Status)

	_, err = m.Execute(context.Background(), advice.ID, "")
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestApproveThenExecute(t *testing.T) {
	m, st, sink := newManager()
	advice, err := m.Create(context.Background(), ptr[int64](1), "budget", "increase 30%")
	require.NoError(t, err)

	reviewed, err := m.Approve(context.Background(), advice.ID, true, ptr("ops"))
	require.NoError(t, err)
	assert.Equal(t, models.AdviceApproved, reviewed.Status)
	require.NotNil(t, reviewed.ApprovedBy)
	assert.Equal(t, "ops", *reviewed.ApprovedBy)

	exec, err := m.Execute(context.Background(), advice.ID, "done")
	require.NoError(t, err)
	assert.Equal(t, "done", exec.Result)
	assert.Equal(t, advice.ID, exec.AdviceID)

	final := st.advice[advice.ID]
	assert.Equal(t, models.AdviceExecuted, final.Status)
	assert.NotNil(t, final.ExecutedAt)
	assert.Len(t, st.executions, 1)

	// Campaign-scoped transitions leave audit steps behind.
	require.Len(t, sink.steps, 2)
	assert.Equal(t, models.StepDecision, sink.steps[0].Kind)
	assert.Equal(t, models.StepExecution, sink.steps[1].Kind)
}

func TestExecuteTwiceCreatesNoSecondRecord(t *testing.T) {
	m, st, _ := newManager()
	advice, err := m.Create(context.Background(), nil, "budget", "increase 30%")
	require.NoError(t, err)
	_, err = m.Approve(context.Background(), advice.ID, true, nil)
	require.NoError(t, err)
	_, err = m.Execute(context.Background(), advice.ID, "")
	require.NoError(t, err)

	_, err = m.Execute(context.Background(), advice.ID, "")
	require.ErrorIs(t, err, models.ErrInvalidState)
	assert.Len(t, st.executions, 1)
}

func TestConcurrentExecuteAdmitsOne(t *testing.T) {
	m, st, _ := newManager()
	advice, err := m.Create(context.Background(), nil, "budget", "increase 30%")
	require.NoError(t, err)
	_, err = m.Approve(context.Background(), advice.ID, true, nil)
	require.NoError(t, err)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Execute(context.Background(), advice.ID, "race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, st.executions, 1)
}

func TestApproveMissingAdvice(t *testing.T) {
	m, _, _ := newManager()
	_, err := m.Approve(context.Background(), "nope", true, nil)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestExecuteDefaultsResultText(t *testing.T) {
	m, _, _ := newManager()
	advice, err := m.Create(context.Background(), nil, "budget", "increase 30%")
	require.NoError(t, err)
	_, err = m.Approve(context.Background(), advice.ID, true, nil)
	require.NoError(t, err)

	exec, err := m.Execute(context.Background(), advice.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "advice executed: increase 30%", exec.Result)
}

func TestListFiltersAndOrders(t *testing.T) {
	m, _, _ := newManager()
	a1, err := m.Create(context.Background(), ptr[int64](1), "budget", "first")
	require.NoError(t, err)
	_, err = m.Create(context.Background(), ptr[int64](2), "budget", "other campaign")
	require.NoError(t, err)
	a3, err := m.Create(context.Background(), ptr[int64](1), "creative", "second")
	require.NoError(t, err)

	all, err := m.List(context.Background(), ptr[int64](1), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a3.ID, all[0].ID, "newest first")
	assert.Equal(t, a1.ID, all[1].ID)

	_, err = m.Approve(context.Background(), a1.ID, true, nil)
	require.NoError(t, err)
	approved, err := m.List(context.Background(), ptr[int64](1), models.AdviceApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, a1.ID, approved[0].ID)

	_, err = m.List(context.Background(), nil, "bogus")
	require.ErrorIs(t, err, models.ErrValidation)
}
