// Package inflight tracks entities that have an asynchronous operation
// outstanding, so the console can show per-row loading state and refuse a
// second request for the same entity until the first one has answered.
package inflight

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/rs/zerolog/log"
)

// Claimer shares markers between replicas. Claim reports false when another
// holder already owns key.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Set is a set of ids with an operation in flight.
type Set[K cmp.Ordered] struct {
	name    string
	mu      sync.Mutex
	ids     map[K]struct{}
	claimer Claimer
}

// SetOption configures a Set.
type SetOption[K cmp.Ordered] func(*Set[K])

// WithClaimer backs the set with a shared claimer.
func WithClaimer[K cmp.Ordered](c Claimer) SetOption[K] {
	return func(s *Set[K]) {
		s.claimer = c
	}
}

// NewSet creates an empty set. name namespaces the shared claim keys.
func NewSet[K cmp.Ordered](name string, opts ...SetOption[K]) *Set[K] {
	s := &Set[K]{
		name: name,
		ids:  make(map[K]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do runs fn with id marked in flight. The marker is added before fn is
// called and removed when fn returns, whatever the outcome, including a panic.
// A second Do for the same id while the first is running returns
// common.ErrInFlight without calling fn. When the shared claimer cannot be
// reached fn still runs, guarded by the local marker only.
func (s *Set[K]) Do(ctx context.Context, id K, fn func(ctx context.Context) error) error {
	if !s.add(id) {
		return fmt.Errorf("%s %v: %w", s.name, id, common.ErrInFlight)
	}
	defer s.remove(id)

	if s.claimer != nil {
		key := s.claimKey(id)
		ok, err := s.claimer.Claim(ctx, key)
		switch {
		case err != nil:
			// The local marker still guards this replica.
			log.Warn().Err(err).Str("key", key).Msg("Shared in-flight claim unavailable, using local marker")
		case !ok:
			return fmt.Errorf("%s %v: %w", s.name, id, common.ErrInFlight)
		default:
			defer s.release(ctx, key)
		}
	}

	return fn(ctx)
}

func (s *Set[K]) release(ctx context.Context, key string) {
	if err := s.claimer.Release(context.WithoutCancel(ctx), key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to release in-flight claim")
	}
}

// Has reports whether id is in flight.
func (s *Set[K]) Has(id K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the ids in flight in ascending order.
func (s *Set[K]) IDs() []K {
	s.mu.Lock()
	out := make([]K, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	s.mu.Unlock()
	slices.Sort(out)
	return out
}

// Len returns the number of ids in flight.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Set[K]) add(id K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Set[K]) remove(id K) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func (s *Set[K]) claimKey(id K) string {
	return fmt.Sprintf("%s:%v", s.name, id)
}

// Flag is a coarse-grained in-flight marker for actions that are not tied to
// one entity, such as testing the whole pool.
type Flag struct {
	active atomic.Bool
}

// Do runs fn with the flag raised. A concurrent Do returns common.ErrBusy.
func (f *Flag) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !f.active.CompareAndSwap(false, true) {
		return common.ErrBusy
	}
	defer f.active.Store(false)
	return fn(ctx)
}

// Active reports whether the action is running.
func (f *Flag) Active() bool {
	return f.active.Load()
}
