package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"biolink/internal/cache"
	"biolink/internal/metrics"
	"biolink/internal/model"
	"biolink/internal/repository"
)

// ViewEventPublisher hands a profile to the background reconciler.
type ViewEventPublisher interface {
	PublishViewRecorded(ctx context.Context, ownerID string, count int64) (string, error)
}

// ViewOptions carries the optional collaborators of ViewService.
type ViewOptions struct {
	Visitors  cache.VisitorCounter
	Cache     cache.ProfileCache
	Publisher ViewEventPublisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// ViewService counts profile and site views.
// The counter rows are authoritative; profiles.view_count is a denormalized copy.
type ViewService struct {
	profiles  repository.ProfileRepository
	counters  repository.CounterRepository
	visitors  cache.VisitorCounter
	cache     cache.ProfileCache
	publisher ViewEventPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewViewService(profiles repository.ProfileRepository, counters repository.CounterRepository, opts ViewOptions) *ViewService {
	return &ViewService{
		profiles:  profiles,
		counters:  counters,
		visitors:  opts.Visitors,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With().Str("component", "view_service").Logger(),
	}
}

// RecordView counts one view of ownerID's profile and one site view.
// Both increments are single upserts. Copying the new count onto the profile is best effort:
// a failure there never undoes the increments and is repaired by the reconcile worker.
func (s *ViewService) RecordView(ctx context.Context, ownerID string, visitor model.Visitor) (*model.ViewResult, error) {
	vc, err := s.counters.IncrementProfileViews(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var uniqueDelta int64
	if s.visitors != nil {
		isNew, err := s.visitors.Observe(ctx, visitor)
		if err != nil {
			s.logger.Warn().Err(err).Msg("visitor tracking failed")
		} else if isNew {
			uniqueDelta = 1
		}
	}

	site, err := s.counters.IncrementSiteViews(ctx, uniqueDelta)
	if err != nil {
		return nil, fmt.Errorf("increment site views: %w", err)
	}

	s.propagate(ctx, ownerID, vc.Count)
	s.metrics.ViewRecorded()

	return &model.ViewResult{
		ProfileViewCount: vc.Count,
		SiteTotalViews:   site.TotalViews,
	}, nil
}

func (s *ViewService) propagate(ctx context.Context, ownerID string, count int64) {
	err := s.profiles.SetViewCount(ctx, ownerID, count)
	if err == nil {
		s.invalidate(ctx, ownerID)
		return
	}

	s.metrics.PropagationFailed()
	s.logger.Warn().Err(err).Str("owner_id", ownerID).Int64("count", count).Msg("view count propagation failed")

	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishViewRecorded(ctx, ownerID, count); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("could not queue reconcile")
	}
}

// SiteStats returns the site-wide counter.
func (s *ViewService) SiteStats(ctx context.Context) (*model.SiteStats, error) {
	return s.counters.GetSiteStats(ctx)
}

// Reconcile copies the authoritative count onto the profile and returns it.
func (s *ViewService) Reconcile(ctx context.Context, ownerID string) (int64, error) {
	vc, err := s.counters.GetProfileViews(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if err := s.profiles.SetViewCount(ctx, ownerID, vc.Count); err != nil {
		return 0, err
	}
	s.invalidate(ctx, ownerID)
	return vc.Count, nil
}

// ReconcileAll pages through every profile and reconciles it.
// It stops at the first store error and reports how many profiles were done.
func (s *ViewService) ReconcileAll(ctx context.Context, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = 500
	}

	done := 0
	after := ""
	for {
		ids, err := s.profiles.ListOwnerIDs(ctx, after, pageSize)
		if err != nil {
			return done, fmt.Errorf("list profiles: %w", err)
		}
		if len(ids) == 0 {
			return done, nil
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return done, err
			}
			if _, err := s.Reconcile(ctx, id); err != nil {
				return done, fmt.Errorf("reconcile %s: %w", id, err)
			}
			done++
		}
		after = ids[len(ids)-1]
	}
}

func (s *ViewService) invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID).Msg("cache invalidation failed")
	}
}
