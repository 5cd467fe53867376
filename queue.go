package livecomponent

import (
	"context"
	"fmt"
	"sync"
)

// TaskQueue runs tasks one at a time in submission order. Each controller owns
// one, so overlapping renders of the same component never interleave their
// request/response cycles.
//
// The zero value is ready to use.
type TaskQueue[T any] struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Task is the completion handle of one enqueued task.
type Task[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Enqueue schedules fn to run once every previously enqueued task has finished.
// A failing or panicking task only fails its own handle.
//
// If ctx is done by the time the task's turn comes, fn is skipped and the
// handle fails with the context error. The queue still waits for the previous
// task first, so order is kept.
func (q *TaskQueue[T]) Enqueue(ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	task := &Task[T]{done: make(chan struct{})}

	q.mu.Lock()
	prev := q.tail
	q.tail = task.done
	q.mu.Unlock()

	go func() {
		defer close(task.done)
		if prev != nil {
			<-prev
		}
		if err := ctx.Err(); err != nil {
			task.err = err
			return
		}
		task.result, task.err = run(ctx, fn)
	}()

	return task
}

func run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("livecomponent: task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Wait blocks until the task finished or ctx is done. Giving up on a task does
// not cancel it.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed when the task finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}
