package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"campaign-advisor/internal/models"
)

// AppendStep inserts one immutable audit entry for a campaign. Appends for
// the same campaign are serialized with a transaction-scoped advisory lock so
// a single pipeline run is never interleaved at sub-step granularity; other
// campaigns append concurrently. There is no update or delete counterpart.
func (s *Store) AppendStep(ctx context.Context, campaignID int64, kind, message string, data map[string]any) (models.StepRecord, error) {
	var dataJSON []byte
	if data != nil {
		var err error
		dataJSON, err = json.Marshal(data)
		if err != nil {
			return models.StepRecord{}, fmt.Errorf("marshal step data: %w", err)
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.StepRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, campaignID); err != nil {
		return models.StepRecord{}, fmt.Errorf("acquire campaign lock: %w", err)
	}

	now := time.Now().UTC()
	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO step_records (campaign_id, kind, message, data, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, campaignID, kind, message, dataJSON, now).Scan(&id)
	if err != nil {
		return models.StepRecord{}, fmt.Errorf("insert step record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.StepRecord{}, fmt.Errorf("commit: %w", err)
	}

	return models.StepRecord{
		ID:         id,
		CampaignID: campaignID,
		Kind:       kind,
		Message:    message,
		Data:       data,
		RecordedAt: now,
	}, nil
}

// ListSteps returns a campaign's step records in append order: ascending
// recorded_at with id as tiebreak.
func (s *Store) ListSteps(ctx context.Context, campaignID int64) ([]models.StepRecord, error) {
	return s.listSteps(ctx, campaignID, "ASC")
}

// ListStepsDesc returns the same records latest first, for log views.
func (s *Store) ListStepsDesc(ctx context.Context, campaignID int64) ([]models.StepRecord, error) {
	return s.listSteps(ctx, campaignID, "DESC")
}

func (s *Store) listSteps(ctx context.Context, campaignID int64, dir string) ([]models.StepRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, campaign_id, kind, message, data, recorded_at
		FROM step_records
		WHERE campaign_id = $1
		ORDER BY recorded_at %s, id %s
	`, dir, dir), campaignID)
	if err != nil {
		return nil, fmt.Errorf("query step records: %w", err)
	}
	defer rows.Close()

	records := []models.StepRecord{}
	for rows.Next() {
		var rec models.StepRecord
		var dataJSON []byte
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.Kind, &rec.Message, &dataJSON, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan step record: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
				return nil, fmt.Errorf("unmarshal step data: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step records: %w", err)
	}
	return records, nil
}
