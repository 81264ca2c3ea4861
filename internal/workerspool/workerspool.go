// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs submitted tasks in goroutines, with a cap on how many run at the
// same time. It backs the asynchronous executions of backends.ExecutableBase.BeginExecute.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool caps the number of tasks running concurrently.
//
// There are no long-lived workers: a goroutine is started per slot in use, and it keeps taking
// queued tasks until the queue is empty.
type Pool struct {
	limit int // < 0 for unlimited.

	mu      sync.Mutex
	running int
	queue   []func()
}

// New returns a Pool limited to runtime.NumCPU() concurrent tasks.
func New() *Pool {
	return NewWithParallelism(runtime.NumCPU())
}

// NewWithParallelism returns a Pool running at most maxParallelism tasks at a time.
// A negative value means no limit, and 0 is the same as 1: tasks never run in the caller's
// goroutine.
func NewWithParallelism(maxParallelism int) *Pool {
	switch {
	case maxParallelism < 0:
		return &Pool{limit: -1}
	case maxParallelism == 0:
		return &Pool{limit: 1}
	}
	return &Pool{limit: maxParallelism}
}

// Submit schedules task and returns immediately. Tasks wait in FIFO order for a free slot.
func (p *Pool) Submit(task func()) {
	if p.limit < 0 {
		go task()
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running >= p.limit {
		p.queue = append(p.queue, task)
		return
	}
	p.running++
	go p.drain(task)
}

// drain runs task and then the queued tasks, releasing its slot when the queue is empty.
func (p *Pool) drain(task func()) {
	for task != nil {
		task()
		p.mu.Lock()
		task = nil
		if len(p.queue) > 0 {
			task = p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
		} else {
			p.running--
		}
		p.mu.Unlock()
	}
}

// NumRunning returns the number of slots in use.
func (p *Pool) NumRunning() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
