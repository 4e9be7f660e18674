package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"campaign-advisor/internal/models"
)

const adviceColumns = `id, campaign_id, type, content, status, created_at, approved_by, executed_at`

// CreateAdvice inserts a new advice record in the pending state.
// campaignID is nil for cross-campaign advice.
func (s *Store) CreateAdvice(ctx context.Context, campaignID *int64, kind, content string) (models.AdviceRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO advice_records (id, campaign_id, type, content, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, campaignID, kind, content, models.AdvicePending, now)
	if err != nil {
		return models.AdviceRecord{}, fmt.Errorf("insert advice: %w", err)
	}

	return models.AdviceRecord{
		ID:         id,
		CampaignID: campaignID,
		Type:       kind,
		Content:    content,
		Status:     models.AdvicePending,
		CreatedAt:  now,
	}, nil
}

// GetAdvice fetches an advice record by id.
func (s *Store) GetAdvice(ctx context.Context, id string) (models.AdviceRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+adviceColumns+` FROM advice_records WHERE id = $1`, id)
	rec, err := scanAdvice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AdviceRecord{}, fmt.Errorf("advice %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.AdviceRecord{}, fmt.Errorf("scan advice: %w", err)
	}
	return rec, nil
}

// ReviewAdvice transitions a pending advice record to approved or rejected
// with a compare-and-set on status. A record that is missing yields
// ErrNotFound; one that already left pending yields ErrInvalidState, so two
// concurrent reviews cannot both succeed.
func (s *Store) ReviewAdvice(ctx context.Context, id, status string, approvedBy *string) (models.AdviceRecord, error) {
	if status != models.AdviceApproved && status != models.AdviceRejected {
		return models.AdviceRecord{}, fmt.Errorf("review status %q: %w", status, models.ErrValidation)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE advice_records
		SET status = $2, approved_by = $3
		WHERE id = $1 AND status = $4
		RETURNING `+adviceColumns, id, status, approvedBy, models.AdvicePending)
	rec, err := scanAdvice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AdviceRecord{}, s.adviceConflict(ctx, id, models.AdvicePending)
	}
	if err != nil {
		return models.AdviceRecord{}, fmt.Errorf("review advice: %w", err)
	}
	return rec, nil
}

// ExecuteAdvice atomically moves an approved advice record to executed and
// writes its execution record in the same transaction. An empty result
// defaults to a description of the executed advice. Only the approved
// state is eligible; re-execution loses the compare-and-set and yields
// ErrInvalidState, so at most one execution record ever exists per advice.
func (s *Store) ExecuteAdvice(ctx context.Context, id, result string) (models.ExecutionRecord, models.AdviceRecord, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ExecutionRecord{}, models.AdviceRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	now := time.Now().UTC()
	row := tx.QueryRow(ctx, `
		UPDATE advice_records
		SET status = $2, executed_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+adviceColumns, id, models.AdviceExecuted, now, models.AdviceApproved)
	advice, err := scanAdvice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ExecutionRecord{}, models.AdviceRecord{}, s.adviceConflict(ctx, id, models.AdviceApproved)
	}
	if err != nil {
		return models.ExecutionRecord{}, models.AdviceRecord{}, fmt.Errorf("execute advice: %w", err)
	}

	if result == "" {
		result = fmt.Sprintf("advice executed: %s", advice.Content)
	}
	exec := models.ExecutionRecord{
		ID:         uuid.New().String(),
		AdviceID:   id,
		Result:     result,
		ExecutedAt: now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO execution_records (id, advice_id, result, executed_at)
		VALUES ($1, $2, $3, $4)
	`, exec.ID, exec.AdviceID, exec.Result, exec.ExecutedAt); err != nil {
		return models.ExecutionRecord{}, models.AdviceRecord{}, fmt.Errorf("insert execution record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ExecutionRecord{}, models.AdviceRecord{}, fmt.Errorf("commit: %w", err)
	}
	return exec, advice, nil
}

// ListAdvice returns advice records newest first, optionally filtered by
// campaign and status.
func (s *Store) ListAdvice(ctx context.Context, campaignID *int64, status string) ([]models.AdviceRecord, error) {
	query := `SELECT ` + adviceColumns + ` FROM advice_records WHERE 1=1`
	args := []any{}
	if campaignID != nil {
		args = append(args, *campaignID)
		query += fmt.Sprintf(" AND campaign_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query advice: %w", err)
	}
	defer rows.Close()

	records := []models.AdviceRecord{}
	for rows.Next() {
		rec, err := scanAdvice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan advice: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advice: %w", err)
	}
	return records, nil
}

// adviceConflict classifies a lost compare-and-set: either the record never
// existed or it is no longer in the expected state.
func (s *Store) adviceConflict(ctx context.Context, id, expected string) error {
	current, err := s.GetAdvice(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("advice %s is %s, expected %s: %w", id, current.Status, expected, models.ErrInvalidState)
}

func scanAdvice(row pgx.Row) (models.AdviceRecord, error) {
	var rec models.AdviceRecord
	var campaignID pgtype.Int8
	var approvedBy pgtype.Text
	var executedAt pgtype.Timestamptz

	if err := row.Scan(&rec.ID, &campaignID, &rec.Type, &rec.Content, &rec.Status, &rec.CreatedAt, &approvedBy, &executedAt); err != nil {
		return models.AdviceRecord{}, err
	}
	if campaignID.Valid {
		rec.CampaignID = &campaignID.Int64
	}
	if approvedBy.Valid {
		rec.ApprovedBy = &approvedBy.String
	}
	if executedAt.Valid {
		t := executedAt.Time
		rec.ExecutedAt = &t
	}
	return rec, nil
}
