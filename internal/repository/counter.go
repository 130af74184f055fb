package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"biolink/internal/model"
)

// counterRepository implements CounterRepository using sqlx.
// Each increment is a single upsert, so concurrent callers never lose an update.
type counterRepository struct {
	db *sqlx.DB
}

func NewCounterRepository(db *sqlx.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) IncrementProfileViews(ctx context.Context, profileID string) (*model.ViewCounter, error) {
	query := `
		INSERT INTO view_counters (profile_id, count, last_viewed_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (profile_id) DO UPDATE
		SET count = view_counters.count + 1, last_viewed_at = NOW()
		RETURNING profile_id, count, last_viewed_at
	`

	var vc model.ViewCounter
	if err := r.db.GetContext(ctx, &vc, query, profileID); err != nil {
		if errors.Is(translateError(err, ""), model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment profile views: %w", err)
	}
	return &vc, nil
}

// GetProfileViews returns a zero counter when the profile has never been viewed.
func (r *counterRepository) GetProfileViews(ctx context.Context, profileID string) (*model.ViewCounter, error) {
	query := `SELECT profile_id, count, last_viewed_at FROM view_counters WHERE profile_id = $1`

	var vc model.ViewCounter
	err := r.db.GetContext(ctx, &vc, query, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.ViewCounter{ProfileID: profileID}, nil
		}
		return nil, fmt.Errorf("failed to get profile views: %w", err)
	}
	return &vc, nil
}

func (r *counterRepository) IncrementSiteViews(ctx context.Context, uniqueDelta int64) (*model.SiteStats, error) {
	query := `
		INSERT INTO site_counter (id, total_views, unique_visitors, last_updated_at)
		VALUES (1, 1, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET total_views = site_counter.total_views + 1,
		    unique_visitors = site_counter.unique_visitors + $1,
		    last_updated_at = NOW()
		RETURNING total_views, unique_visitors, last_updated_at
	`

	var stats model.SiteStats
	if err := r.db.GetContext(ctx, &stats, query, uniqueDelta); err != nil {
		return nil, fmt.Errorf("failed to increment site views: %w", err)
	}
	return &stats, nil
}

// GetSiteStats returns zero stats before the first view.
func (r *counterRepository) GetSiteStats(ctx context.Context) (*model.SiteStats, error) {
	query := `SELECT total_views, unique_visitors, last_updated_at FROM site_counter WHERE id = 1`

	var stats model.SiteStats
	err := r.db.GetContext(ctx, &stats, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.SiteStats{}, nil
		}
		return nil, fmt.Errorf("failed to get site stats: %w", err)
	}
	return &stats, nil
}
