package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"biolink/internal/cache"
	"biolink/internal/metrics"
	"biolink/internal/model"
	"biolink/internal/repository"
)

// ProfileOptions carries the optional collaborators of ProfileService.
// Any nil collaborator disables the feature that needs it.
type ProfileOptions struct {
	Cache    cache.ProfileCache
	Identity IdentityProvider
	Uploader Uploader
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger

	// SlugLookupFallback resolves an unknown slug as an owner id.
	SlugLookupFallback bool
}

// ProfileService handles business logic for profile reads and writes.
type ProfileService struct {
	repo         repository.ProfileRepository
	cache        cache.ProfileCache
	identity     IdentityProvider
	uploader     Uploader
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	slugFallback bool
	now          func() time.Time
}

func NewProfileService(repo repository.ProfileRepository, opts ProfileOptions) *ProfileService {
	return &ProfileService{
		repo:         repo,
		cache:        opts.Cache,
		identity:     opts.Identity,
		uploader:     opts.Uploader,
		metrics:      opts.Metrics,
		logger:       opts.Logger.With().Str("component", "profile_service").Logger(),
		slugFallback: opts.SlugLookupFallback,
		now:          time.Now,
	}
}

// Get returns the profile owned by ownerID with defaults applied.
func (s *ProfileService) Get(ctx context.Context, ownerID, callerID string) (*model.Profile, error) {
	p, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return p.Materialize().WithViewer(callerID), nil
}

// GetBySlug resolves a shareable slug. Slugs and owner ids are separate key spaces
// unless the slug fallback is enabled.
func (s *ProfileService) GetBySlug(ctx context.Context, slug, callerID string) (*model.Profile, error) {
	normalized := strings.ToLower(strings.TrimSpace(slug))

	p, err := s.repo.GetBySlug(ctx, normalized)
	if errors.Is(err, model.ErrNotFound) && s.slugFallback {
		p, err = s.load(ctx, slug)
	}
	if err != nil {
		return nil, err
	}
	return p.Materialize().WithViewer(callerID), nil
}

// load reads through the cache. Cache failures degrade to a store read.
func (s *ProfileService) load(ctx context.Context, ownerID string) (*model.Profile, error) {
	if s.cache != nil {
		p, found, err := s.cache.Get(ctx, ownerID)
		if err != nil {
			s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("cache read failed")
		} else if found {
			return p, nil
		}
	}

	p, err := s.repo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("cache write failed")
		}
	}
	return p, nil
}

// Create makes the caller's profile. Missing display name and avatar are seeded from the
// identity provider when it answers; a failed lookup does not block creation.
func (s *ProfileService) Create(ctx context.Context, callerID string, init model.ProfileInit) (*model.Profile, error) {
	if init.OwnerID == "" {
		init.OwnerID = callerID
	}
	if err := authorize(callerID, init.OwnerID); err != nil {
		return nil, err
	}
	if len(init.OwnerID) > model.MaxOwnerIDLen {
		return nil, model.NewFieldError("ownerId", fmt.Sprintf("must be at most %d characters", model.MaxOwnerIDLen))
	}

	s.seedFromIdentity(ctx, &init)

	p, slugDefaulted, err := s.buildProfile(ctx, init)
	if err != nil {
		return nil, err
	}

	err = s.repo.Create(ctx, p)
	var conflict *model.ConflictError
	if errors.As(err, &conflict) && conflict.Field == "shareableSlug" && slugDefaulted {
		// Someone claimed the default slug in the meantime; create without one.
		p.ShareableSlug = nil
		err = s.repo.Create(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, p.OwnerID)
	s.logger.Info().Str("owner_id", p.OwnerID).Msg("profile created")
	return p.Materialize().WithViewer(callerID), nil
}

func (s *ProfileService) seedFromIdentity(ctx context.Context, init *model.ProfileInit) {
	if s.identity == nil || (init.DisplayName != "" && init.AvatarRef != nil) {
		return
	}

	id, err := s.identity.GetUser(ctx, init.OwnerID)
	if err != nil {
		s.logger.Debug().Err(err).Str("owner_id", init.OwnerID).Msg("identity lookup skipped")
		return
	}

	if init.DisplayName == "" {
		init.DisplayName = id.DisplayName
	}
	if init.AvatarRef == nil && id.AvatarURL != "" {
		init.AvatarRef = model.StringPtr(id.AvatarURL)
	}
	if id.Username != "" {
		init.DiscordUsername = model.StringPtr(id.Username)
	}
}

// buildProfile validates init with the same rules as an update.
func (s *ProfileService) buildProfile(ctx context.Context, init model.ProfileInit) (*model.Profile, bool, error) {
	if strings.TrimSpace(init.DisplayName) == "" {
		init.DisplayName = init.OwnerID
	}
	displayName, err := cleanDisplayName(truncateRunes(init.DisplayName, model.MaxDisplayNameLen))
	if err != nil {
		return nil, false, err
	}

	joinDate := strings.TrimSpace(init.JoinDate)
	if joinDate == "" {
		joinDate = s.now().UTC().Format("2006-01-02")
	}
	if len([]rune(joinDate)) > model.MaxJoinDateLen {
		return nil, false, model.NewFieldError("joinDate", fmt.Sprintf("must be at most %d characters", model.MaxJoinDateLen))
	}

	p := &model.Profile{
		OwnerID:         init.OwnerID,
		DisplayName:     displayName,
		DiscordUsername: init.DiscordUsername,
		JoinDate:        joinDate,
		SocialLinks:     model.SocialLinks{},
	}

	if init.AvatarRef != nil {
		if p.AvatarRef, err = optionalURL("avatarRef", *init.AvatarRef); err != nil {
			return nil, false, err
		}
	}

	if init.SocialLinks != nil {
		if p.SocialLinks, err = cleanSocialLinks(init.SocialLinks); err != nil {
			return nil, false, err
		}
	}

	if init.ThemeID != nil && strings.TrimSpace(*init.ThemeID) != "" {
		p.ThemeID = model.StringPtr(model.ResolveTheme(strings.TrimSpace(*init.ThemeID)))
	}

	slugDefaulted := false
	if init.ShareableSlug != nil {
		if p.ShareableSlug, err = cleanSlug(*init.ShareableSlug); err != nil {
			return nil, false, err
		}
	} else {
		p.ShareableSlug = s.defaultSlug(ctx, init.OwnerID)
		slugDefaulted = p.ShareableSlug != nil
	}

	return p, slugDefaulted, nil
}

// defaultSlug uses the owner id as the slug when it is a valid, unclaimed slug.
func (s *ProfileService) defaultSlug(ctx context.Context, ownerID string) *string {
	candidate := strings.ToLower(ownerID)
	if !model.IsValidSlug(candidate) {
		return nil
	}
	if _, err := s.repo.GetBySlug(ctx, candidate); !errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return &candidate
}

// Update merges patch into the owner's profile in one write.
func (s *ProfileService) Update(ctx context.Context, callerID, ownerID string, patch *model.ProfilePatch) (*model.Profile, error) {
	if err := authorize(callerID, ownerID); err != nil {
		return nil, err
	}
	if patch != nil {
		// Identity fields are only written by SyncIdentity.
		patch.DiscordUsername = nil
	}

	p, err := s.apply(ctx, ownerID, patch)
	if err != nil {
		return nil, err
	}
	return p.Materialize().WithViewer(callerID), nil
}

// apply runs the merge engine against a fresh read and persists the result.
func (s *ProfileService) apply(ctx context.Context, ownerID string, patch *model.ProfilePatch) (*model.Profile, error) {
	p, err := s.applyPatch(ctx, ownerID, patch)
	s.metrics.UpdateResult(resultLabel(err))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) applyPatch(ctx context.Context, ownerID string, patch *model.ProfilePatch) (*model.Profile, error) {
	current, err := s.repo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	update, err := Merge(current, patch)
	if err != nil {
		return nil, err
	}

	if v, ok := update.Lookup(model.ColShareableSlug); ok {
		if slug := derefAny(v); slug != "" {
			other, err := s.repo.GetBySlug(ctx, slug)
			switch {
			case err == nil && other.OwnerID != ownerID:
				return nil, &model.ConflictError{Field: "shareableSlug", Value: slug}
			case err != nil && !errors.Is(err, model.ErrNotFound):
				return nil, err
			}
		}
	}

	updated, err := s.repo.Update(ctx, ownerID, update)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, ownerID)
	s.logger.Info().Str("owner_id", ownerID).Int("fields", len(update.Set)).Msg("profile updated")
	return updated, nil
}

// SyncIdentity copies display name, username and avatar from the identity provider.
// On provider failure the profile is left unchanged.
func (s *ProfileService) SyncIdentity(ctx context.Context, callerID, ownerID string) (*model.Profile, error) {
	if err := authorize(callerID, ownerID); err != nil {
		return nil, err
	}
	if s.identity == nil {
		return nil, fmt.Errorf("%w: identity provider not configured", model.ErrUpstreamUnavailable)
	}

	id, err := s.identity.GetUser(ctx, ownerID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || isUpstream(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}

	patch := &model.ProfilePatch{
		DisplayName:     model.StringPtr(truncateRunes(id.DisplayName, model.MaxDisplayNameLen)),
		DiscordUsername: model.StringPtr(truncateRunes(id.Username, model.MaxDisplayNameLen)),
		AvatarRef:       model.StringPtr(id.AvatarURL),
	}

	p, err := s.apply(ctx, ownerID, patch)
	if err != nil {
		return nil, err
	}
	return p.Materialize().WithViewer(callerID), nil
}

// LookupIdentity returns the identity provider's record for id.
func (s *ProfileService) LookupIdentity(ctx context.Context, id string) (*model.Identity, error) {
	if s.identity == nil {
		return nil, fmt.Errorf("%w: identity provider not configured", model.ErrUpstreamUnavailable)
	}
	return s.identity.GetUser(ctx, id)
}

// SetAvatar uploads the file and then points avatarRef at it.
func (s *ProfileService) SetAvatar(ctx context.Context, callerID, ownerID string, file UploadFile) (*model.Profile, error) {
	res, err := s.upload(ctx, callerID, ownerID, func(u Uploader) (*model.UploadResult, error) {
		return u.UploadAvatar(ctx, file)
	})
	if err != nil {
		return nil, err
	}

	p, err := s.apply(ctx, ownerID, &model.ProfilePatch{AvatarRef: model.StringPtr(res.URL)})
	if err != nil {
		return nil, err
	}
	return p.Materialize().WithViewer(callerID), nil
}

// SetBackground uploads the file and sets backgroundKind and backgroundRef together.
func (s *ProfileService) SetBackground(ctx context.Context, callerID, ownerID string, file UploadFile) (*model.Profile, error) {
	res, err := s.upload(ctx, callerID, ownerID, func(u Uploader) (*model.UploadResult, error) {
		return u.UploadBackground(ctx, file)
	})
	if err != nil {
		return nil, err
	}

	p, err := s.apply(ctx, ownerID, &model.ProfilePatch{
		BackgroundKind: model.StringPtr(res.Kind),
		BackgroundRef:  model.StringPtr(res.URL),
	})
	if err != nil {
		return nil, err
	}
	return p.Materialize().WithViewer(callerID), nil
}

// upload checks ownership and existence before sending bytes anywhere.
func (s *ProfileService) upload(ctx context.Context, callerID, ownerID string, do func(Uploader) (*model.UploadResult, error)) (*model.UploadResult, error) {
	if err := authorize(callerID, ownerID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByOwnerID(ctx, ownerID); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: upload service not configured", model.ErrUpstreamUnavailable)
	}

	res, err := do(s.uploader)
	if err != nil {
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("upload failed")
		return nil, err
	}
	return res, nil
}

func (s *ProfileService) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("cache invalidation failed")
	}
}

// authorize requires an authenticated caller acting on its own profile.
func authorize(callerID, ownerID string) error {
	if callerID == "" {
		return model.ErrUnauthenticated
	}
	if callerID != ownerID {
		return model.ErrForbidden
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
