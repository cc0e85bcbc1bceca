package work

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrInvalidQueueSize   = errors.New("invalid queue size")
	ErrPoolStopped        = errors.New("worker pool has been stopped")
	ErrPoolNotStarted     = errors.New("worker pool has not been started")
	ErrQueueFull          = errors.New("task queue is full")
	ErrTaskTimeout        = errors.New("task execution timeout")
)

// TaskResult is the outcome of one task.
type TaskResult[T any] struct {
	TaskID   string
	Result   T
	Error    error
	Duration time.Duration
}

// IsSuccess returns true if the task completed successfully
func (tr TaskResult[T]) IsSuccess() bool {
	return tr.Error == nil
}

// PoolConfig holds configuration for the worker pool
type PoolConfig[T any] struct {
	Name            string
	NumWorkers      int
	QueueSize       int
	TaskTimeout     time.Duration // Default timeout for tasks
	ShutdownTimeout time.Duration // How long Stop waits for queued tasks
	// OnResult is called from the worker goroutine after every task.
	OnResult func(TaskResult[T])
}

// DefaultPoolConfig returns a small pool suited to fan-out of side effects.
func DefaultPoolConfig[T any](name string) PoolConfig[T] {
	return PoolConfig[T]{
		Name:            name,
		NumWorkers:      2,
		QueueSize:       256,
		TaskTimeout:     10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Pool runs submitted tasks on a fixed set of goroutines.
type Pool[T any] struct {
	config PoolConfig[T]
	tasks  chan Executor[T]
	quit   chan struct{}
	wg     sync.WaitGroup

	tasksQueued    atomic.Int64
	tasksCompleted atomic.Int64
	tasksFailed    atomic.Int64

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorkerPool validates config and creates a pool that is not yet running.
func NewWorkerPool[T any](config PoolConfig[T]) (*Pool[T], error) {
	if config.NumWorkers <= 0 {
		return nil, ErrInvalidWorkerCount
	}
	if config.QueueSize < 0 {
		return nil, ErrInvalidQueueSize
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 10 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	if config.Name == "" {
		config.Name = "pool"
	}

	return &Pool[T]{
		config: config,
		tasks:  make(chan Executor[T], config.QueueSize),
		quit:   make(chan struct{}),
	}, nil
}

// Start launches the workers. Tasks run with a context derived from ctx.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	log.Info().
		Str("pool", p.config.Name).
		Int("numWorkers", p.config.NumWorkers).
		Msg("Worker pool started")
}

// Stop stops accepting tasks and waits up to ShutdownTimeout for the queue
// to drain.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Str("pool", p.config.Name).Msg("All workers stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		close(p.quit)
		log.Warn().Str("pool", p.config.Name).Dur("timeout", p.config.ShutdownTimeout).Msg("Shutdown timeout exceeded")
	}
}

// AddTask queues task, blocking until there is room or ctx is done.
func (p *Pool[T]) AddTask(ctx context.Context, task Executor[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.acceptingLocked(); err != nil {
		return err
	}

	select {
	case p.tasks <- task:
		p.tasksQueued.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues task without blocking.
func (p *Pool[T]) Submit(task Executor[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.acceptingLocked(); err != nil {
		return err
	}

	select {
	case p.tasks <- task:
		p.tasksQueued.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool[T]) acceptingLocked() error {
	if p.stopped {
		return ErrPoolStopped
	}
	if !p.started {
		return ErrPoolNotStarted
	}
	return nil
}

// Stats returns pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		TasksQueued:    p.tasksQueued.Load(),
		TasksCompleted: p.tasksCompleted.Load(),
		TasksFailed:    p.tasksFailed.Load(),
		TasksInQueue:   int64(len(p.tasks)),
	}
}

// PoolStats holds statistics about the pool
type PoolStats struct {
	TasksQueued    int64 `json:"tasks_queued"`
	TasksCompleted int64 `json:"tasks_completed"`
	TasksFailed    int64 `json:"tasks_failed"`
	TasksInQueue   int64 `json:"tasks_in_queue"`
}

func (p *Pool[T]) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.executeTask(ctx, task, workerID)
		}
	}
}

// executeTask runs one task with its timeout. A panicking task is reported as
// a failed result and does not take the worker down.
func (p *Pool[T]) executeTask(ctx context.Context, task Executor[T], workerID int) {
	taskID := task.ExecutorID()
	start := time.Now()

	timeout := p.config.TaskTimeout
	if t := task.Timeout(); t > 0 {
		timeout = t
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		result T
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		result, err = task.Execute(taskCtx)
	}()

	if err != nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		err = ErrTaskTimeout
	}

	if err != nil {
		p.tasksFailed.Add(1)
		task.OnError(err)
	}
	p.tasksCompleted.Add(1)

	if p.config.OnResult != nil {
		p.config.OnResult(TaskResult[T]{
			TaskID:   taskID,
			Result:   result,
			Error:    err,
			Duration: time.Since(start),
		})
	}

	log.Debug().
		Str("pool", p.config.Name).
		Int("workerID", workerID).
		Str("taskID", taskID).
		Bool("success", err == nil).
		Msg("Task completed")
}
