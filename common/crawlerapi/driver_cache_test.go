package crawlerapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/redis"
	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls   int
	drivers []string
	err     error
}

func (s *countingSource) Drivers(ctx context.Context) ([]string, error) {
	s.calls++
	return s.drivers, s.err
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.Wrap(redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestDriverCacheLoadsOnceUntilExpiry(t *testing.T) {
	mr, rc := newMiniRedis(t)
	src := &countingSource{drivers: []string{"mangadex", "nettruyen"}}
	cache := NewDriverCache(src, rc, time.Minute)
	ctx := context.Background()

	first, err := cache.Drivers(ctx)
	require.NoError(t, err)
	second, err := cache.Drivers(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"mangadex", "nettruyen"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls)

	mr.FastForward(2 * time.Minute)
	_, err = cache.Drivers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestDriverCacheDoesNotStoreFailures(t *testing.T) {
	mr, rc := newMiniRedis(t)
	src := &countingSource{err: errors.New("boom")}
	cache := NewDriverCache(src, rc, time.Minute)

	_, err := cache.Drivers(context.Background())
	assert.Error(t, err)
	assert.False(t, mr.Exists(common.DriverCacheKey))
}

func TestDriverCacheReplacesMalformedEntry(t *testing.T) {
	mr, rc := newMiniRedis(t)
	require.NoError(t, mr.Set(common.DriverCacheKey, "not json"))
	src := &countingSource{drivers: []string{"mangadex"}}
	cache := NewDriverCache(src, rc, time.Minute)

	drivers, err := cache.Drivers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"mangadex"}, drivers)
	assert.Equal(t, 1, src.calls)

	require.NoError(t, cache.Invalidate(context.Background()))
	assert.False(t, mr.Exists(common.DriverCacheKey))
}
