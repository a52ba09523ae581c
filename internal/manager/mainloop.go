package manager

import (
	"context"
	"fmt"
)

// MainLoop is the default delivery Executor: a single goroutine running posted
// functions in FIFO order, the equivalent of a UI main thread.
type MainLoop struct {
	q *serialQueue
}

// NewMainLoop starts a MainLoop. A panicking function is reported to onPanic
// when set; otherwise the panic is re-raised on the loop goroutine.
func NewMainLoop(onPanic func(v any)) *MainLoop {
	return &MainLoop{q: newSerialQueue(onPanic)}
}

// Post schedules fn. It returns ErrDeliveryUnavailable after Close.
func (l *MainLoop) Post(fn func()) error {
	if !l.q.submit(fn) {
		return fmt.Errorf("main loop: %w", ErrDeliveryUnavailable)
	}
	return nil
}

// Drain waits until every function posted before the call has run.
func (l *MainLoop) Drain(ctx context.Context) error { return l.q.drain(ctx) }

// Close stops accepting work; functions already posted still run.
func (l *MainLoop) Close() { l.q.close() }
