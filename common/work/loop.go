package work

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrInvalidInterval = errors.New("invalid loop interval")

// TickFunc is called once per loop iteration.
type TickFunc func(ctx context.Context)

// Loop calls a function at a fixed interval on its own goroutine. The next
// tick is scheduled only after the previous call has returned, so two calls
// of the same loop never overlap and a slow call delays the schedule instead
// of stacking requests.
type Loop struct {
	id          string
	interval    time.Duration
	tickTimeout time.Duration
	immediate   bool
	fn          TickFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopID names the loop in logs.
func WithLoopID(id string) LoopOption {
	return func(l *Loop) {
		l.id = id
	}
}

// WithTickTimeout bounds each call of the tick function.
func WithTickTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.tickTimeout = d
	}
}

// WithImmediateTick runs the first tick right away instead of after one interval.
func WithImmediateTick() LoopOption {
	return func(l *Loop) {
		l.immediate = true
	}
}

// StartLoop starts fn on a new goroutine. The loop runs until Cancel or Stop
// is called or parent is done.
func StartLoop(parent context.Context, interval time.Duration, fn TickFunc, opts ...LoopOption) (*Loop, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	l := &Loop{
		id:       newID(),
		interval: interval,
		fn:       fn,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel

	go l.run(ctx)

	log.Debug().Str("loopID", l.id).Dur("interval", interval).Msg("Loop started")
	return l, nil
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	first := l.interval
	if l.immediate {
		first = 0
	}
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("loopID", l.id).Msg("Loop stopped")
			return
		case <-timer.C:
			l.tick(ctx)
			if ctx.Err() != nil {
				log.Debug().Str("loopID", l.id).Msg("Loop stopped")
				return
			}
			timer.Reset(l.interval)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("loopID", l.id).Interface("panic", r).Msg("Loop tick panicked")
		}
	}()

	if l.tickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.tickTimeout)
		defer cancel()
	}
	l.fn(ctx)
}

// ID returns the loop id.
func (l *Loop) ID() string { return l.id }

// Cancel asks the loop to stop without waiting. It is safe to call from
// inside the tick function.
func (l *Loop) Cancel() { l.cancel() }

// Stop cancels the loop and waits for its goroutine to exit. It must not be
// called from inside the tick function.
func (l *Loop) Stop() {
	l.cancel()
	<-l.done
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() { <-l.done }

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Active reports whether the loop goroutine is still running.
func (l *Loop) Active() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}
