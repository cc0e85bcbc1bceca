package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name        string
		numWorkers  int
		queueSize   int
		expectError error
	}{
		{"valid pool", 5, 10, nil},
		{"zero workers", 0, 10, ErrInvalidWorkerCount},
		{"negative workers", -1, 10, ErrInvalidWorkerCount},
		{"negative queue size", 5, -1, ErrInvalidQueueSize},
		{"zero queue size", 5, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewWorkerPool(PoolConfig[string]{NumWorkers: tt.numWorkers, QueueSize: tt.queueSize})
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("Expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if pool == nil {
				t.Error("Expected pool but got nil")
			}
		})
	}
}

func TestWorkerPoolDeliversResults(t *testing.T) {
	results := make(chan TaskResult[string], 1)
	cfg := DefaultPoolConfig[string]("test")
	cfg.OnResult = func(r TaskResult[string]) { results <- r }

	pool, err := NewWorkerPool(cfg)
	if err != nil {
		t.Fatal(err)
	}
	pool.Start(context.Background())
	defer pool.Stop()

	task := NewTask(func(ctx context.Context) (string, error) {
		return "delivered", nil
	}, WithID[string]("task-1"))

	if err := pool.Submit(task); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-results:
		if !r.IsSuccess() {
			t.Errorf("Expected success, got %v", r.Error)
		}
		if r.Result != "delivered" || r.TaskID != "task-1" {
			t.Errorf("Unexpected result %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for result")
	}
}

func TestWorkerPoolTimeoutAndErrorHandler(t *testing.T) {
	results := make(chan TaskResult[struct{}], 1)
	cfg := DefaultPoolConfig[struct{}]("timeout")
	cfg.OnResult = func(r TaskResult[struct{}]) { results <- r }

	pool, err := NewWorkerPool(cfg)
	if err != nil {
		t.Fatal(err)
	}
	pool.Start(context.Background())
	defer pool.Stop()

	var handled atomic.Bool
	task := SimpleTask(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	},
		WithTimeout[struct{}](20*time.Millisecond),
		WithErrorHandler[struct{}](func(err error) { handled.Store(true) }),
	)
	if err := pool.Submit(task); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-results:
		if !errors.Is(r.Error, ErrTaskTimeout) {
			t.Errorf("Expected ErrTaskTimeout, got %v", r.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for result")
	}
	if !handled.Load() {
		t.Error("Expected error handler to be called")
	}
	if pool.Stats().TasksFailed != 1 {
		t.Errorf("Expected 1 failed task, got %d", pool.Stats().TasksFailed)
	}
}

func TestWorkerPoolSurvivesPanics(t *testing.T) {
	var wg sync.WaitGroup
	var failures atomic.Int64
	cfg := DefaultPoolConfig[struct{}]("panic")
	cfg.NumWorkers = 1
	cfg.OnResult = func(r TaskResult[struct{}]) {
		if r.Error != nil {
			failures.Add(1)
		}
		wg.Done()
	}

	pool, err := NewWorkerPool(cfg)
	if err != nil {
		t.Fatal(err)
	}
	pool.Start(context.Background())
	defer pool.Stop()

	wg.Add(2)
	_ = pool.Submit(SimpleTask(func(ctx context.Context) error { panic("boom") }))
	_ = pool.Submit(SimpleTask(func(ctx context.Context) error { return nil }))
	wg.Wait()

	if failures.Load() != 1 {
		t.Errorf("Expected 1 failure, got %d", failures.Load())
	}
}

func TestWorkerPoolRejectsAfterStop(t *testing.T) {
	pool, err := NewWorkerPool(DefaultPoolConfig[struct{}]("stop"))
	if err != nil {
		t.Fatal(err)
	}

	task := SimpleTask(func(ctx context.Context) error { return nil })
	if err := pool.Submit(task); !errors.Is(err, ErrPoolNotStarted) {
		t.Errorf("Expected ErrPoolNotStarted, got %v", err)
	}

	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	if err := pool.Submit(task); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped, got %v", err)
	}
	if err := pool.AddTask(context.Background(), task); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Expected ErrPoolStopped, got %v", err)
	}
}

func TestSubmitReportsFullQueue(t *testing.T) {
	cfg := DefaultPoolConfig[struct{}]("full")
	cfg.NumWorkers = 1
	cfg.QueueSize = 1

	pool, err := NewWorkerPool(cfg)
	if err != nil {
		t.Fatal(err)
	}
	pool.Start(context.Background())
	defer pool.Stop()

	release := make(chan struct{})
	started := make(chan struct{})
	blocker := SimpleTask(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	if err := pool.Submit(blocker); err != nil {
		t.Fatal(err)
	}
	<-started

	noop := SimpleTask(func(ctx context.Context) error { return nil })
	if err := pool.Submit(noop); err != nil {
		t.Fatalf("Expected queue slot, got %v", err)
	}
	if err := pool.Submit(noop); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	close(release)
}
