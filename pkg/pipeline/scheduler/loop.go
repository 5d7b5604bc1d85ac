// Package scheduler provides the single threaded task queue the pipeline
// engine defers its work to. Every task posted to a Loop runs on the
// goroutine that called Run, one at a time and in posting order.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	ErrLoopClosed  = errors.New("loop is closed")
	ErrLoopRunning = errors.New("loop is already running")
)

// Loop is a FIFO queue of deferred tasks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	closed  bool
	wake    chan struct{}
	quit    chan struct{}
	running atomic.Bool
}

// New creates an empty loop. Nothing runs until Run is called.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
}

// Post appends task to the queue. It never blocks and never runs task
// synchronously, so it is safe to call from inside a running task.
func (l *Loop) Post(task func()) error {
	if task == nil {
		return errors.New("task must be set")
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()

		return ErrLoopClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return nil
}

// Run executes queued tasks until ctx is done or Close is called. It
// returns ctx.Err() in the first case and nil in the second.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		default:
		}

		task, ok := l.pop()
		if ok {
			task()

			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}

	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return task, true
}

// Pending returns the number of tasks waiting to run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.queue)
}

// Close stops Run and rejects further posts. Queued tasks are dropped.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.queue = nil
	close(l.quit)
}
