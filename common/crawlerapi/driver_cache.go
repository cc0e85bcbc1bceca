package crawlerapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/redis"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DriverSource returns the crawler driver names.
type DriverSource interface {
	Drivers(ctx context.Context) ([]string, error)
}

// DriverCache keeps the driver list in Redis so every console screen does
// not hit the backend for a list that rarely changes.
type DriverCache struct {
	source DriverSource
	redis  *redis.RedisClient
	ttl    time.Duration
}

// NewDriverCache wraps source. A non-positive ttl uses the default.
func NewDriverCache(source DriverSource, rc *redis.RedisClient, ttl time.Duration) *DriverCache {
	if ttl <= 0 {
		ttl = common.DefaultDriverTTL
	}
	return &DriverCache{source: source, redis: rc, ttl: ttl}
}

// Drivers returns the cached list, loading it from the source on a miss.
// Redis failures fall back to the source.
func (d *DriverCache) Drivers(ctx context.Context) ([]string, error) {
	cached, err := d.redis.Get(ctx, common.DriverCacheKey)
	switch {
	case err == nil:
		var drivers []string
		if jsonErr := json.Unmarshal([]byte(cached), &drivers); jsonErr == nil {
			return drivers, nil
		}
		log.Warn().Str("key", common.DriverCacheKey).Msg("Discarding malformed driver cache entry")
	case errors.Is(err, redisv9.Nil):
	default:
		log.Warn().Err(err).Msg("Driver cache unavailable, loading from API")
	}

	drivers, err := d.source.Drivers(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(drivers)
	if err == nil {
		if err := d.redis.Set(ctx, common.DriverCacheKey, raw, d.ttl); err != nil {
			log.Warn().Err(err).Msg("Failed to cache driver list")
		}
	}
	return drivers, nil
}

// Invalidate drops the cached list.
func (d *DriverCache) Invalidate(ctx context.Context) error {
	return d.redis.Delete(ctx, common.DriverCacheKey)
}
