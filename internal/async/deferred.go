// Package async provides the deferred-value primitives the render pipeline
// and lifecycle machine are built on: write-once settled values and a
// run-once combinator that memoizes side-effecting operations.
package async

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Deferred is a write-once value that any number of consumers can await.
// The first Resolve or Reject wins; later settlements are ignored.
type Deferred[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewDeferred creates an unsettled deferred value.
func NewDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolve settles the deferred with a value.
func (d *Deferred[T]) Resolve(v T) {
	d.once.Do(func() {
		d.val = v
		close(d.done)
	})
}

// Reject settles the deferred with an error.
func (d *Deferred[T]) Reject(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// Await blocks until the deferred settles or ctx is done.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Settled reports whether the deferred has been resolved or rejected.
func (d *Deferred[T]) Settled() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Done exposes the settlement channel for select loops.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Once wraps a deferred computation so the underlying work executes exactly
// once per instance regardless of how many call sites invoke it. The first
// caller runs the function; every caller, concurrent or later, observes the
// same settled result. This is the engine's substitute for locking on
// lifecycle operations.
type Once[T any] struct {
	fn     func(ctx context.Context) (T, error)
	once   sync.Once
	called atomic.Bool
	result *Deferred[T]
}

// NewOnce creates a run-once wrapper around fn.
func NewOnce[T any](fn func(ctx context.Context) (T, error)) *Once[T] {
	return &Once[T]{fn: fn, result: NewDeferred[T]()}
}

// Do runs the wrapped function if it has not run yet and returns the shared
// settled result. The function receives the first caller's context.
func (o *Once[T]) Do(ctx context.Context) (T, error) {
	o.once.Do(func() {
		o.called.Store(true)
		v, err := o.fn(ctx)
		if err != nil {
			o.result.Reject(err)
			return
		}
		o.result.Resolve(v)
	})
	return o.result.Await(ctx)
}

// Called reports whether the wrapped function has started executing.
func (o *Once[T]) Called() bool {
	return o.called.Load()
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
