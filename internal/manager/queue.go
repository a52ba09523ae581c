package manager

import (
	"context"
	"sync"
)

// serialQueue runs submitted tasks one at a time, in submission order, on a
// single goroutine. Submission never blocks.
type serialQueue struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{} // size 1: coalesced wakeups
	closed  bool
	stopped chan struct{}
	// onPanic is called on the queue goroutine when a task panics.
	onPanic func(v any)
}

func newSerialQueue(onPanic func(v any)) *serialQueue {
	q := &serialQueue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		onPanic: onPanic,
	}
	go q.run()
	return q
}

// submit appends fn to the queue. It reports false once the queue is closed.
func (q *serialQueue) submit(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// len returns the number of tasks waiting to run.
func (q *serialQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *serialQueue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			continue
		}
		fn := q.tasks[0]
		// Clear the slot so finished tasks (and what they captured) can be collected.
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		q.exec(fn)
	}
}

func (q *serialQueue) exec(fn func()) {
	defer func() {
		if v := recover(); v != nil {
			if q.onPanic == nil {
				panic(v)
			}
			q.onPanic(v)
		}
	}()
	fn()
}

// drain waits until every task submitted before the call has run.
func (q *serialQueue) drain(ctx context.Context) error {
	done := make(chan struct{})
	if !q.submit(func() { close(done) }) {
		// Closed: wait for the remaining tasks to finish instead.
		done = q.stopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting tasks. Already submitted tasks still run.
func (q *serialQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
