package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"biolink/internal/model"
)

const (
	// ProfileCachePrefix is the key prefix for cached profiles, keyed by owner id
	ProfileCachePrefix = "profile:owner:"

	// DefaultProfileCacheTTL applies when the configured TTL is not positive
	DefaultProfileCacheTTL = 5 * time.Minute
)

// ProfileCache holds stored profiles in front of the repository.
// Entries are written before defaults are applied, so they match what the store returns.
type ProfileCache interface {
	// Get returns (profile, found, error). found=false on a miss.
	Get(ctx context.Context, ownerID string) (*model.Profile, bool, error)

	// Set stores the profile with the configured TTL.
	Set(ctx context.Context, profile *model.Profile) error

	// Invalidate removes the entry. It must be called after every successful write
	// so no reader sees a value older than the last acknowledged update.
	Invalidate(ctx context.Context, ownerID string) error
}

// RedisProfileCache implements ProfileCache with plain string keys holding JSON.
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProfileCache creates a new ProfileCache backed by Redis.
func NewProfileCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) ProfileCache {
	if ttl <= 0 {
		ttl = DefaultProfileCacheTTL
	}
	return &RedisProfileCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "profile_cache").Logger(),
	}
}

func profileKey(ownerID string) string {
	return ProfileCachePrefix + ownerID
}

func (c *RedisProfileCache) Get(ctx context.Context, ownerID string) (*model.Profile, bool, error) {
	raw, err := c.client.Get(ctx, profileKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached profile: %w", err)
	}

	var p model.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("dropping undecodable cache entry")
		_ = c.client.Del(ctx, profileKey(ownerID)).Err()
		return nil, false, nil
	}
	p.IsOwnerView = false

	return &p, true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, profile *model.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := c.client.Set(ctx, profileKey(profile.OwnerID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached profile: %w", err)
	}

	c.logger.Debug().Str("owner_id", profile.OwnerID).Dur("ttl", c.ttl).Msg("cached profile")
	return nil
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, ownerID string) error {
	if err := c.client.Del(ctx, profileKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached profile: %w", err)
	}
	c.logger.Debug().Str("owner_id", ownerID).Msg("invalidated profile")
	return nil
}
