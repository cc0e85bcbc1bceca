package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LexiconIndonesia/crawler-admin-service/common/work"
	"github.com/rs/zerolog/log"
)

// Sink delivers a notification to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

// HubConfig sizes the hub.
type HubConfig struct {
	Recent  int
	Workers int
}

// Hub keeps the most recent notifications in memory and fans each one out to
// its sinks on a worker pool, so a slow sink never holds up a poll tick.
type Hub struct {
	mu     sync.RWMutex
	recent []Notification
	next   int
	full   bool

	sinks []Sink
	pool  *work.Pool[struct{}]
}

// NewHub creates and starts a hub.
func NewHub(cfg HubConfig, sinks ...Sink) (*Hub, error) {
	if cfg.Recent <= 0 {
		cfg.Recent = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	poolCfg := work.DefaultPoolConfig[struct{}]("notify")
	poolCfg.NumWorkers = cfg.Workers
	pool, err := work.NewWorkerPool(poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating notification pool: %w", err)
	}
	pool.Start(context.Background())

	return &Hub{
		recent: make([]Notification, cfg.Recent),
		sinks:  sinks,
		pool:   pool,
	}, nil
}

// Publish records n and queues it for every sink.
func (h *Hub) Publish(n Notification) {
	if n.ID == "" || n.CreatedAt.IsZero() {
		filled := New(n.Category, n.Source, n.Message, n.Details...)
		if n.ID != "" {
			filled.ID = n.ID
		}
		if !n.CreatedAt.IsZero() {
			filled.CreatedAt = n.CreatedAt
		}
		n = filled
	}

	h.mu.Lock()
	h.recent[h.next] = n
	h.next = (h.next + 1) % len(h.recent)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()

	for _, sink := range h.sinks {
		sink := sink
		task := work.SimpleTask(func(ctx context.Context) error {
			return sink.Deliver(ctx, n)
		}, work.WithErrorHandler[struct{}](func(err error) {
			log.Warn().Err(err).Str("sink", sink.Name()).Str("notification", n.ID).Msg("Notification delivery failed")
		}))

		if err := h.pool.Submit(task); err != nil {
			if errors.Is(err, work.ErrPoolStopped) {
				return
			}
			log.Warn().Err(err).Str("sink", sink.Name()).Msg("Dropping notification")
		}
	}
}

// Recent returns up to limit notifications, newest first. A limit of zero or
// less returns everything kept.
func (h *Hub) Recent(limit int) []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := h.next
	if h.full {
		count = len(h.recent)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.recent)) % len(h.recent)
		out = append(out, h.recent[idx])
	}
	return out
}

// Close waits for queued deliveries and stops the workers.
func (h *Hub) Close() {
	h.pool.Stop()
}
