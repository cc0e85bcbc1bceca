package inflight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/redis"
	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetMarksBeforeAndClearsAfter(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context) error
		want error
	}{
		{"success", func(ctx context.Context) error { return nil }, nil},
		{"error", func(ctx context.Context) error { return errors.New("boom") }, errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSet[int64]("testing")
			var seen bool
			err := s.Do(context.Background(), 7, func(ctx context.Context) error {
				seen = s.Has(7)
				return tt.fn(ctx)
			})

			assert.Equal(t, tt.want, err)
			assert.True(t, seen, "marker must be set while the operation runs")
			assert.False(t, s.Has(7), "marker must be cleared after the operation")
			assert.Zero(t, s.Len())
		})
	}
}

func TestSetClearsMarkerOnPanic(t *testing.T) {
	s := NewSet[string]("retrying")

	assert.Panics(t, func() {
		_ = s.Do(context.Background(), "a", func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.False(t, s.Has("a"))
}

func TestSetRejectsConcurrentSameID(t *testing.T) {
	s := NewSet[int64]("testing")
	release := make(chan struct{})
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Do(context.Background(), 1, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := s.Do(context.Background(), 1, func(ctx context.Context) error {
		t.Fatal("second operation for the same id must not run")
		return nil
	})
	assert.ErrorIs(t, err, common.ErrInFlight)

	// other ids are not blocked
	var ran bool
	require.NoError(t, s.Do(context.Background(), 2, func(ctx context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.Equal(t, []int64{1}, s.IDs())

	close(release)
	wg.Wait()
	assert.Empty(t, s.IDs())
}

func TestFlag(t *testing.T) {
	var f Flag
	err := f.Do(context.Background(), func(ctx context.Context) error {
		assert.True(t, f.Active())
		return f.Do(ctx, func(ctx context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, common.ErrBusy)
	assert.False(t, f.Active())
}

func TestSetWithRedisClaimer(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.Wrap(redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	claimer := NewRedisClaimer(rc, time.Minute)
	replicaA := NewSet[string]("cancelling", WithClaimer[string](claimer))
	replicaB := NewSet[string]("cancelling", WithClaimer[string](claimer))

	err := replicaA.Do(context.Background(), "job-1", func(ctx context.Context) error {
		assert.True(t, mr.Exists(common.InflightKeyPrefix+"cancelling:job-1"))

		otherErr := replicaB.Do(ctx, "job-1", func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, otherErr, common.ErrInFlight)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(common.InflightKeyPrefix+"cancelling:job-1"))
	assert.False(t, replicaB.Has("job-1"))
}

func TestRedisClaimExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.Wrap(redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	claimer := NewRedisClaimer(rc, time.Second)
	ok, err := claimer.Claim(context.Background(), "testing:1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = claimer.Claim(context.Background(), "testing:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetFallsBackToLocalMarkerWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.Wrap(redisv9.NewClient(&redisv9.Options{
		Addr:        mr.Addr(),
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	}))
	t.Cleanup(func() { _ = rc.Close() })
	mr.Close()

	s := NewSet[int64]("testing", WithClaimer[int64](NewRedisClaimer(rc, time.Minute)))

	var ran, marked bool
	err := s.Do(context.Background(), 3, func(ctx context.Context) error {
		ran = true
		marked = s.Has(3)

		otherErr := s.Do(ctx, 3, func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, otherErr, common.ErrInFlight, "local marker still rejects a second request")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran, "operation must run without the shared claim")
	assert.True(t, marked)
	assert.False(t, s.Has(3))
}

func TestSetReturnsOperationErrorWhenClaimFails(t *testing.T) {
	s := NewSet[string]("retrying", WithClaimer[string](failingClaimer{}))
	boom := errors.New("boom")

	err := s.Do(context.Background(), "a", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom, "the caller sees the operation's own outcome")
	assert.Empty(t, s.IDs())
}

type failingClaimer struct{}

func (failingClaimer) Claim(ctx context.Context, key string) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingClaimer) Release(ctx context.Context, key string) error {
	panic("release must not be called for a claim that was never taken")
}
