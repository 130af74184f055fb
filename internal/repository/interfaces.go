package repository

import (
	"context"

	"biolink/internal/model"
)

// ProfileRepository persists profile aggregates keyed by owner id, with a unique slug index.
type ProfileRepository interface {
	// Create inserts a new profile and fills CreatedAt/UpdatedAt.
	// Returns a *model.ConflictError when the owner id or slug is taken.
	Create(ctx context.Context, profile *model.Profile) error
	GetByOwnerID(ctx context.Context, ownerID string) (*model.Profile, error)
	GetBySlug(ctx context.Context, slug string) (*model.Profile, error)
	// Update applies every assignment plus updated_at = now() in a single write.
	Update(ctx context.Context, ownerID string, update model.ProfileUpdate) (*model.Profile, error)
	// SetViewCount raises the denormalized view count to count. It never lowers it.
	SetViewCount(ctx context.Context, ownerID string, count int64) error
	// ListOwnerIDs pages through owner ids in ascending order, starting after the given id.
	ListOwnerIDs(ctx context.Context, after string, limit int) ([]string, error)
}

// CounterRepository holds the authoritative view counters.
type CounterRepository interface {
	// IncrementProfileViews adds one view, creating the counter on first use.
	IncrementProfileViews(ctx context.Context, profileID string) (*model.ViewCounter, error)
	GetProfileViews(ctx context.Context, profileID string) (*model.ViewCounter, error)
	// IncrementSiteViews adds one view and uniqueDelta visitors to the site counter.
	IncrementSiteViews(ctx context.Context, uniqueDelta int64) (*model.SiteStats, error)
	GetSiteStats(ctx context.Context) (*model.SiteStats, error)
}
