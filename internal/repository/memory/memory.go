// Package memory is an in-process implementation of the repository contracts.
// It backs STORAGE_DRIVER=memory and the service tests. A single mutex makes every
// operation atomic, which matches the one-statement guarantees of the postgres store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"biolink/internal/model"
	"biolink/internal/repository"
)

// Store implements repository.ProfileRepository and repository.CounterRepository.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*model.Profile
	slugs    map[string]string // slug -> owner id
	views    map[string]*model.ViewCounter
	site     *model.SiteStats
	now      func() time.Time
}

var (
	_ repository.ProfileRepository = (*Store)(nil)
	_ repository.CounterRepository = (*Store)(nil)
)

func New() *Store {
	return &Store{
		profiles: make(map[string]*model.Profile),
		slugs:    make(map[string]string),
		views:    make(map[string]*model.ViewCounter),
		now:      time.Now,
	}
}

// tick returns a timestamp strictly after prev so updated_at always moves forward.
func (s *Store) tick(prev time.Time) time.Time {
	t := s.now().UTC()
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

func (s *Store) Create(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.OwnerID]; ok {
		return &model.ConflictError{Field: "ownerId"}
	}
	if p.ShareableSlug != nil {
		if _, ok := s.slugs[*p.ShareableSlug]; ok {
			return &model.ConflictError{Field: "shareableSlug", Value: *p.ShareableSlug}
		}
	}

	now := s.tick(time.Time{})
	p.CreatedAt = now
	p.UpdatedAt = now
	p.ViewCount = 0
	if p.SocialLinks == nil {
		p.SocialLinks = model.SocialLinks{}
	}

	stored := p.Clone()
	s.profiles[p.OwnerID] = stored
	if stored.ShareableSlug != nil {
		s.slugs[*stored.ShareableSlug] = stored.OwnerID
	}
	return nil
}

func (s *Store) GetByOwnerID(_ context.Context, ownerID string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[ownerID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) GetBySlug(_ context.Context, slug string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ownerID, ok := s.slugs[slug]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s.profiles[ownerID].Clone(), nil
}

// Update applies the assignments to a copy and swaps it in only when every check passes.
func (s *Store) Update(_ context.Context, ownerID string, update model.ProfileUpdate) (*model.Profile, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[ownerID]
	if !ok {
		return nil, model.ErrNotFound
	}

	if update.RequireBackgroundRef && (current.BackgroundRef == nil || *current.BackgroundRef == "") {
		return nil, &model.StateError{
			Fields: []string{"backgroundKind", "backgroundRef"},
			Reason: "background kind needs a backgroundRef",
		}
	}

	next := current.Clone()
	for _, a := range update.Set {
		if err := apply(next, a); err != nil {
			return nil, err
		}
	}

	if next.ShareableSlug != nil {
		if holder, taken := s.slugs[*next.ShareableSlug]; taken && holder != ownerID {
			return nil, &model.ConflictError{Field: "shareableSlug", Value: *next.ShareableSlug}
		}
	}

	if current.ShareableSlug != nil {
		delete(s.slugs, *current.ShareableSlug)
	}
	if next.ShareableSlug != nil {
		s.slugs[*next.ShareableSlug] = ownerID
	}

	next.UpdatedAt = s.tick(current.UpdatedAt)
	s.profiles[ownerID] = next
	return next.Clone(), nil
}

func (s *Store) SetViewCount(_ context.Context, ownerID string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[ownerID]
	if !ok {
		return model.ErrNotFound
	}
	if count > p.ViewCount {
		p.ViewCount = count
	}
	return nil
}

func (s *Store) ListOwnerIDs(_ context.Context, after string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) IncrementProfileViews(_ context.Context, profileID string) (*model.ViewCounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[profileID]; !ok {
		return nil, model.ErrNotFound
	}

	vc, ok := s.views[profileID]
	if !ok {
		vc = &model.ViewCounter{ProfileID: profileID}
		s.views[profileID] = vc
	}
	vc.Count++
	vc.LastViewedAt = s.now().UTC()

	out := *vc
	return &out, nil
}

func (s *Store) GetProfileViews(_ context.Context, profileID string) (*model.ViewCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vc, ok := s.views[profileID]
	if !ok {
		return &model.ViewCounter{ProfileID: profileID}, nil
	}
	out := *vc
	return &out, nil
}

func (s *Store) IncrementSiteViews(_ context.Context, uniqueDelta int64) (*model.SiteStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.site == nil {
		s.site = &model.SiteStats{}
	}
	s.site.TotalViews++
	s.site.UniqueVisitors += uniqueDelta
	s.site.LastUpdatedAt = s.now().UTC()

	out := *s.site
	return &out, nil
}

func (s *Store) GetSiteStats(_ context.Context) (*model.SiteStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.site == nil {
		return &model.SiteStats{}, nil
	}
	out := *s.site
	return &out, nil
}

func apply(p *model.Profile, a model.Assignment) error {
	switch a.Column {
	case model.ColDisplayName:
		v, err := plainString(a)
		if err != nil {
			return err
		}
		p.DisplayName = v
	case model.ColJoinDate:
		v, err := plainString(a)
		if err != nil {
			return err
		}
		p.JoinDate = v
	case model.ColSocialLinks:
		links, ok := a.Value.(model.SocialLinks)
		if !ok {
			return fmt.Errorf("column %s: unexpected value type %T", a.Column, a.Value)
		}
		p.SocialLinks = links.Clone()
	default:
		target := nullableField(p, a.Column)
		if target == nil {
			return fmt.Errorf("column %q is not writable", a.Column)
		}
		v, err := nullableString(a)
		if err != nil {
			return err
		}
		*target = v
	}
	return nil
}

func nullableField(p *model.Profile, col string) **string {
	switch col {
	case model.ColDiscordUsername:
		return &p.DiscordUsername
	case model.ColStatusText:
		return &p.StatusText
	case model.ColLocation:
		return &p.Location
	case model.ColMood:
		return &p.Mood
	case model.ColAvatarRef:
		return &p.AvatarRef
	case model.ColShareableSlug:
		return &p.ShareableSlug
	case model.ColThemeID:
		return &p.ThemeID
	case model.ColBackgroundKind:
		return &p.BackgroundKind
	case model.ColBackgroundRef:
		return &p.BackgroundRef
	case model.ColAudioRef:
		return &p.AudioRef
	case model.ColAudioTitle:
		return &p.AudioTitle
	case model.ColNameStyle:
		return &p.NameStyle
	case model.ColNameColor:
		return &p.NameColor
	case model.ColSocialIconStyle:
		return &p.SocialIconStyle
	case model.ColSocialIconColor:
		return &p.SocialIconColor
	}
	return nil
}

func plainString(a model.Assignment) (string, error) {
	switch v := a.Value.(type) {
	case string:
		return v, nil
	case *string:
		if v != nil {
			return *v, nil
		}
	}
	return "", fmt.Errorf("column %s: unexpected value %T", a.Column, a.Value)
}

func nullableString(a model.Assignment) (*string, error) {
	switch v := a.Value.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	case *string:
		if v == nil {
			return nil, nil
		}
		c := *v
		return &c, nil
	}
	return nil, fmt.Errorf("column %s: unexpected value %T", a.Column, a.Value)
}
