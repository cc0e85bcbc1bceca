package inflight

import (
	"context"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/redis"
)

const claimedState = "claimed"

// RedisClaimer stores markers as Redis keys with a TTL so a replica that dies
// mid-request cannot leave an entity locked forever.
type RedisClaimer struct {
	redis *redis.RedisClient
	ttl   time.Duration
}

// NewRedisClaimer creates a claimer. A non-positive ttl uses the default.
func NewRedisClaimer(rc *redis.RedisClient, ttl time.Duration) *RedisClaimer {
	if ttl <= 0 {
		ttl = common.DefaultInflightTTL
	}
	return &RedisClaimer{redis: rc, ttl: ttl}
}

func (c *RedisClaimer) redisKey(key string) string {
	return common.InflightKeyPrefix + key
}

// Claim sets the marker only if nobody holds it.
func (c *RedisClaimer) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.redis.SetNX(ctx, c.redisKey(key), claimedState, c.ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}

// Release removes the marker.
func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	if err := c.redis.Delete(ctx, c.redisKey(key)); err != nil {
		return fmt.Errorf("failed to release %s: %w", key, err)
	}
	return nil
}
