package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"campaign-advisor/internal/models"
)

// Campaign storage is a boundary collaborator: the engine only needs lookup
// for prompts and pipeline payloads, plus the minimal CRUD to make the
// service usable on its own.

// CreateCampaignParams collects inputs required to insert a campaign.
type CreateCampaignParams struct {
	Name      string
	Product   string
	Objective string
	Budget    float64
}

// CreateCampaign inserts a campaign in the created state.
func (s *Store) CreateCampaign(ctx context.Context, p CreateCampaignParams) (models.Campaign, error) {
	now := time.Now().UTC()
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ad_campaigns (name, product, objective, budget, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.Name, p.Product, p.Objective, p.Budget, models.CampaignCreated, now).Scan(&id)
	if err != nil {
		return models.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	return models.Campaign{
		ID:        id,
		Name:      p.Name,
		Product:   p.Product,
		Objective: p.Objective,
		Budget:    p.Budget,
		Status:    models.CampaignCreated,
		CreatedAt: now,
	}, nil
}

// GetCampaign fetches a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id int64) (models.Campaign, error) {
	var c models.Campaign
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, product, objective, budget, status, created_at
		FROM ad_campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Product, &c.Objective, &c.Budget, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Campaign{}, fmt.Errorf("campaign %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Campaign{}, fmt.Errorf("scan campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns returns campaigns newest first.
func (s *Store) ListCampaigns(ctx context.Context, limit, offset int) ([]models.Campaign, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, product, objective, budget, status, created_at
		FROM ad_campaigns
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Product, &c.Objective, &c.Budget, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return campaigns, nil
}

// UpdateCampaignStatus changes a campaign's status.
func (s *Store) UpdateCampaignStatus(ctx context.Context, id int64, status string) (models.Campaign, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ad_campaigns SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return models.Campaign{}, fmt.Errorf("update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Campaign{}, fmt.Errorf("campaign %d: %w", id, models.ErrNotFound)
	}
	return s.GetCampaign(ctx, id)
}
