package crashcast

import (
	"context"
)

// Task is the handle to an asynchronous Train or Predict call. The result is available once Done is
// closed.
type Task[T any] struct {
	done chan struct{}
	res  T
	err  error
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// failedTask returns a task that has already completed with err
func failedTask[T any](err error) *Task[T] {
	t := newTask[T]()
	var zero T
	t.complete(zero, err)
	return t
}

func (t *Task[T]) complete(res T, err error) {
	t.res = res
	t.err = err
	close(t.done)
}

// Done is closed once the call has finished
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Poll returns the result without blocking. The bool reports whether the call has finished; the
// result and error are only meaningful when it is true.
func (t *Task[T]) Poll() (T, bool, error) {
	select {
	case <-t.done:
		return t.res, true, t.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Wait blocks until the call finishes or ctx is done. Giving up on the wait does not stop the call.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.res, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
