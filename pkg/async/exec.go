package async

import (
	"context"
	"time"
)

// ExecFuture is the handle for a fire-and-forget task that reports only an
// error.
type ExecFuture struct {
	err  error
	done chan struct{}
}

// Await blocks until the task completes and returns its error.
func (f *ExecFuture) Await() error {
	<-f.done
	return f.err
}

// AwaitWithTimeout waits for completion up to the given duration and
// returns ErrTimeout when it elapses first. The task keeps running.
func (f *ExecFuture) AwaitWithTimeout(timeout time.Duration) error {
	select {
	case <-f.done:
		return f.err
	case <-time.After(timeout):
		return ErrTimeout
	}
}

// IsComplete reports completion without blocking.
func (f *ExecFuture) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Exec runs fn in a goroutine with the given parameter. A pre-canceled
// context resolves the future immediately with the context error instead of
// starting the work.
func Exec[T any](ctx context.Context, param T, fn func(context.Context, T) error) *ExecFuture {
	f := &ExecFuture{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		select {
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		default:
		}

		f.err = fn(ctx, param)
	}()

	return f
}

// ExecAll waits for every future and returns the first error encountered,
// in argument order.
func ExecAll(futures ...*ExecFuture) error {
	for _, future := range futures {
		if err := future.Await(); err != nil {
			return err
		}
	}
	return nil
}

// ExecAny waits for the first future to complete and returns its index and
// error. One goroutine is spawned per future; the rest finish naturally.
func ExecAny(futures ...*ExecFuture) (int, error) {
	if len(futures) == 0 {
		return -1, ErrNoFutures
	}

	type result struct {
		index int
		err   error
	}
	done := make(chan result, 1)

	for i, future := range futures {
		go func(index int, f *ExecFuture) {
			err := f.Await()
			select {
			case done <- result{index: index, err: err}:
			default:
			}
		}(i, future)
	}

	res := <-done
	return res.index, res.err
}
