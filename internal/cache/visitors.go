package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"biolink/internal/model"
)

const (
	// VisitorsKeyPrefix is the key prefix for the per-day HyperLogLog of visitor fingerprints
	VisitorsKeyPrefix = "visitors:day:"

	// VisitorsTTL keeps yesterday's set around while late views for it drain
	VisitorsTTL = 48 * time.Hour
)

// VisitorCounter approximates unique visitors.
type VisitorCounter interface {
	// Observe records the visitor and reports whether it was not seen before today.
	Observe(ctx context.Context, v model.Visitor) (bool, error)
}

// RedisVisitorCounter adds a fingerprint per visitor to a daily HyperLogLog.
// PFADD reports 1 when the estimate changed, which is counted as a new visitor.
type RedisVisitorCounter struct {
	client *redis.Client
	now    func() time.Time
}

func NewVisitorCounter(client *redis.Client) *RedisVisitorCounter {
	return &RedisVisitorCounter{client: client, now: time.Now}
}

func (c *RedisVisitorCounter) Observe(ctx context.Context, v model.Visitor) (bool, error) {
	day := c.now().UTC().Format("2006-01-02")
	key := VisitorsKeyPrefix + day

	pipe := c.client.TxPipeline()
	added := pipe.PFAdd(ctx, key, Fingerprint(v, day))
	pipe.Expire(ctx, key, VisitorsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("observe visitor: %w", err)
	}

	return added.Val() == 1, nil
}

// Fingerprint hashes the visitor with a daily salt. Raw addresses are never stored.
func Fingerprint(v model.Visitor, day string) string {
	sum := blake2b.Sum256([]byte(v.IP + "\x00" + v.UserAgent + "\x00" + day))
	return hex.EncodeToString(sum[:16])
}
