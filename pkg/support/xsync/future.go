package xsync

import (
	"context"
)

// Future is the handle to a value of type T being computed elsewhere, usually in another goroutine.
//
// The producer calls Resolve exactly once (later calls are ignored). Any number of consumers can
// call Await: the first one blocks until the value is resolved, and later calls return the same
// cached value and error.
type Future[T any] struct {
	latch *LatchWithValue[futureResult[T]]
}

type futureResult[T any] struct {
	value T
	err   error
}

// NewFuture returns an unresolved Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{latch: NewLatchWithValue[futureResult[T]]()}
}

// ResolvedFuture returns a Future already resolved with the given value and error.
func ResolvedFuture[T any](value T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(value, err)
	return f
}

// Resolve sets the value and error of the future, and wakes up everyone waiting on it.
// Only the first call has an effect.
func (f *Future[T]) Resolve(value T, err error) {
	f.latch.Trigger(futureResult[T]{value: value, err: err})
}

// Await blocks until the future is resolved, and returns its value and error.
func (f *Future[T]) Await() (T, error) {
	r := f.latch.Wait()
	return r.value, r.err
}

// AwaitContext is like Await, but it returns ctx.Err() if the context is done first.
//
// Giving up waiting doesn't interrupt the computation: a later Await still returns the result.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.latch.WaitChan():
		return f.Await()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel that is closed when the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.latch.WaitChan()
}

// IsResolved returns whether the future has already been resolved, without blocking.
func (f *Future[T]) IsResolved() bool {
	return f.latch.Test()
}
