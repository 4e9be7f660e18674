package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"campaign-advisor/internal/models"
)

// CreateBrief appends an industry-context snapshot. Briefs are never updated
// or deleted. archiveRef points at the archived raw payload when archiving is
// enabled.
func (s *Store) CreateBrief(ctx context.Context, content string, rawData, archiveRef *string) (models.IndustryBrief, error) {
	brief := models.IndustryBrief{
		ID:         uuid.New().String(),
		Date:       time.Now().UTC(),
		Content:    content,
		RawData:    rawData,
		ArchiveRef: archiveRef,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO industry_briefs (id, date, content, raw_data, archive_ref)
		VALUES ($1, $2, $3, $4, $5)
	`, brief.ID, brief.Date, brief.Content, brief.RawData, brief.ArchiveRef)
	if err != nil {
		return models.IndustryBrief{}, fmt.Errorf("insert brief: %w", err)
	}
	return brief, nil
}

// ListBriefs returns the newest briefs first, capped at limit.
func (s *Store) ListBriefs(ctx context.Context, limit int) ([]models.IndustryBrief, error) {
	if limit <= 0 {
		limit = 7
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, date, content, raw_data, archive_ref
		FROM industry_briefs
		ORDER BY date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query briefs: %w", err)
	}
	defer rows.Close()

	briefs := []models.IndustryBrief{}
	for rows.Next() {
		var b models.IndustryBrief
		var raw, ref pgtype.Text
		if err := rows.Scan(&b.ID, &b.Date, &b.Content, &raw, &ref); err != nil {
			return nil, fmt.Errorf("scan brief: %w", err)
		}
		if raw.Valid {
			b.RawData = &raw.String
		}
		if ref.Valid {
			b.ArchiveRef = &ref.String
		}
		briefs = append(briefs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate briefs: %w", err)
	}
	return briefs, nil
}
