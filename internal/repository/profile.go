package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"biolink/internal/model"
)

// profileColumns keeps SELECT and RETURNING in the same order.
const profileColumns = `
	owner_id, display_name, discord_username, status_text, location, mood, join_date,
	avatar_ref, social_links, view_count, shareable_slug, theme_id, background_kind,
	background_ref, audio_ref, audio_title, name_style, name_color, social_icon_style,
	social_icon_color, created_at, updated_at`

// profileRepository implements ProfileRepository using sqlx
type profileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// Create inserts a new profile into the database
func (r *profileRepository) Create(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO profiles (owner_id, display_name, discord_username, join_date, avatar_ref,
		                      social_links, shareable_slug, theme_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING view_count, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		p.OwnerID,
		p.DisplayName,
		p.DiscordUsername,
		p.JoinDate,
		p.AvatarRef,
		p.SocialLinks,
		p.ShareableSlug,
		p.ThemeID,
	)

	if err := row.Scan(&p.ViewCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert profile: %w", translateError(err, slugValue(p.ShareableSlug)))
	}

	return nil
}

// GetByOwnerID retrieves a profile by its owner id
func (r *profileRepository) GetByOwnerID(ctx context.Context, ownerID string) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE owner_id = $1`

	var p model.Profile
	err := r.db.GetContext(ctx, &p, query, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile by owner id: %w", err)
	}

	return &p, nil
}

// GetBySlug retrieves a profile by its shareable slug
func (r *profileRepository) GetBySlug(ctx context.Context, slug string) (*model.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE shareable_slug = $1`

	var p model.Profile
	err := r.db.GetContext(ctx, &p, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile by slug: %w", err)
	}

	return &p, nil
}

// Update builds one UPDATE from the assignments. updated_at is always bumped, so an empty
// update still touches the row. When RequireBackgroundRef is set the stored background_ref
// must be present for the row to match; a miss is then told apart from a missing profile.
func (r *profileRepository) Update(ctx context.Context, ownerID string, update model.ProfileUpdate) (*model.Profile, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	sets := []string{"updated_at = NOW()"}
	args := make([]any, 0, len(update.Set)+1)

	for _, a := range update.Set {
		args = append(args, a.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}

	args = append(args, ownerID)
	where := fmt.Sprintf("owner_id = $%d", len(args))
	if update.RequireBackgroundRef {
		where += " AND background_ref IS NOT NULL AND background_ref <> ''"
	}

	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, profileColumns)

	var p model.Profile
	err := r.db.GetContext(ctx, &p, query, args...)
	if err == nil {
		return &p, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		slug := ""
		if v, ok := update.Lookup(model.ColShareableSlug); ok {
			if s, ok := v.(*string); ok {
				slug = slugValue(s)
			}
		}
		return nil, fmt.Errorf("failed to update profile: %w", translateError(err, slug))
	}

	if !update.RequireBackgroundRef {
		return nil, model.ErrNotFound
	}

	if _, err := r.GetByOwnerID(ctx, ownerID); err != nil {
		return nil, err
	}
	return nil, &model.StateError{
		Fields: []string{"backgroundKind", "backgroundRef"},
		Reason: "background kind needs a backgroundRef",
	}
}

// SetViewCount raises view_count to count; GREATEST keeps it non-decreasing under races.
func (r *profileRepository) SetViewCount(ctx context.Context, ownerID string, count int64) error {
	query := `UPDATE profiles SET view_count = GREATEST(view_count, $1) WHERE owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, count, ownerID)
	if err != nil {
		return fmt.Errorf("failed to set view count: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *profileRepository) ListOwnerIDs(ctx context.Context, after string, limit int) ([]string, error) {
	query := `SELECT owner_id FROM profiles WHERE owner_id > $1 ORDER BY owner_id LIMIT $2`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, after, limit); err != nil {
		return nil, fmt.Errorf("failed to list owner ids: %w", err)
	}
	return ids, nil
}

func slugValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
