package work

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Executor is one unit of work for a Pool.
type Executor[T any] interface {
	ExecutorID() string
	Execute(ctx context.Context) (T, error)
	OnError(error)
	Timeout() time.Duration // 0 means use the pool default
}

type task[T any] struct {
	id           string
	execute      func(ctx context.Context) (T, error)
	errorHandler func(error)
	timeout      time.Duration
}

// TaskOption configures a task.
type TaskOption[T any] func(*task[T])

// WithID sets a custom ID for the task
func WithID[T any](id string) TaskOption[T] {
	return func(t *task[T]) {
		t.id = id
	}
}

// WithErrorHandler sets a custom error handler for the task
func WithErrorHandler[T any](handler func(error)) TaskOption[T] {
	return func(t *task[T]) {
		t.errorHandler = handler
	}
}

// WithTimeout sets a custom timeout for the task
func WithTimeout[T any](timeout time.Duration) TaskOption[T] {
	return func(t *task[T]) {
		t.timeout = timeout
	}
}

// NewTask wraps execute. Tasks get a time-ordered UUIDv7 id unless WithID is given.
func NewTask[T any](execute func(ctx context.Context) (T, error), options ...TaskOption[T]) Executor[T] {
	t := &task[T]{
		id:      newID(),
		execute: execute,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// SimpleTask creates a task that only reports completion.
func SimpleTask(execute func(ctx context.Context) error, options ...TaskOption[struct{}]) Executor[struct{}] {
	return NewTask(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, execute(ctx)
	}, options...)
}

func (t *task[T]) ExecutorID() string { return t.id }

func (t *task[T]) Execute(ctx context.Context) (T, error) { return t.execute(ctx) }

func (t *task[T]) OnError(err error) {
	if t.errorHandler != nil {
		t.errorHandler(err)
	}
}

func (t *task[T]) Timeout() time.Duration { return t.timeout }

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
