// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync holds synchronization helpers used by the executables: latches, a Future for
// results computed in other goroutines, and a wait-group that can grow while being waited on.
package xsync

import "sync"

// Latch is a one-shot signal: it starts untriggered and, once triggered, stays triggered.
type Latch struct {
	once sync.Once
	done chan struct{}
}

// NewLatch returns an untriggered Latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Trigger the latch, waking up all waiters. Only the first call has an effect.
func (l *Latch) Trigger() { l.trigger(nil) }

// trigger calls set, if not nil, before the latch is released and only if it was not yet triggered.
func (l *Latch) trigger(set func()) {
	l.once.Do(func() {
		if set != nil {
			set()
		}
		close(l.done)
	})
}

// Wait blocks until the latch is triggered.
func (l *Latch) Wait() { <-l.done }

// Test returns whether the latch was triggered, without blocking.
func (l *Latch) Test() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// WaitChan returns a channel closed when the latch is triggered, for use in a select.
func (l *Latch) WaitChan() <-chan struct{} { return l.done }

// LatchWithValue is a Latch that carries the value given to the first Trigger.
type LatchWithValue[T any] struct {
	Latch
	value T
}

// NewLatchWithValue returns an untriggered LatchWithValue.
func NewLatchWithValue[T any]() *LatchWithValue[T] {
	return &LatchWithValue[T]{Latch: Latch{done: make(chan struct{})}}
}

// Trigger the latch with value. Values of later calls are discarded.
func (l *LatchWithValue[T]) Trigger(value T) {
	l.trigger(func() { l.value = value })
}

// Wait blocks until the latch is triggered and returns its value.
func (l *LatchWithValue[T]) Wait() T {
	l.Latch.Wait()
	return l.value
}
