// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"sync"
)

// Scheduler runs completion work outside the caller's stack.
type Scheduler interface {
	Go(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

func (f SchedulerFunc) Go(fn func()) { f(fn) }

// GoroutineScheduler runs each function on a new goroutine.
var GoroutineScheduler Scheduler = SchedulerFunc(func(fn func()) { go fn() })

// Future is the eventual outcome of an Invoke. It completes exactly once,
// either with a value, with an error, or empty (204 No Content).
type Future[T any] struct {
	sched Scheduler

	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error
	empty     bool
	callbacks []func(T, error)
}

func newFuture[T any](sched Scheduler) *Future[T] {
	if sched == nil {
		sched = GoroutineScheduler
	}
	return &Future[T]{sched: sched, done: make(chan struct{})}
}

// Done is closed once the future has completed.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the future completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Empty reports whether the future completed without a payload. It is only
// meaningful after Done is closed.
func (f *Future[T]) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed && f.empty
}

// Then registers fn to run on the scheduler once the future completes with a
// value or an error. Empty completions do not invoke fn.
func (f *Future[T]) Then(fn func(T, error)) *Future[T] {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return f
	}
	value, err, empty := f.value, f.err, f.empty
	f.mu.Unlock()
	if !empty {
		f.sched.Go(func() { fn(value, err) })
	}
	return f
}

func (f *Future[T]) complete(value T, err error, empty bool) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.value, f.err, f.empty = value, err, empty
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	if empty {
		return
	}
	for _, fn := range callbacks {
		fn(value, err)
	}
}
