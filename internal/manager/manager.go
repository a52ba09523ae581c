package manager

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type Manager struct {
	queue     *serialQueue
	exec      Executor
	ownLoop   *MainLoop
	merger    Merger
	log       zerolog.Logger
	tracer    trace.Tracer
	publisher atomic.Pointer[publisherBox]
	debug     bool
	startTime time.Time

	// Owned by the mutation queue goroutine.
	reg   *registry
	store *store
	seq   uint64

	closed    atomic.Bool
	passes    atomic.Uint64
	conflicts atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	pruned    atomic.Uint64
	lastSeq   atomic.Uint64
	lastErr   atomic.Pointer[string]
}

// New returns a Manager with default configuration: replace-on-merge and an
// owned MainLoop as delivery context.
func New() *Manager {
	return NewWithConfig(ManagerConfig{})
}

// submit enqueues fn on the mutation queue.
func (m *Manager) submit(fn func()) bool {
	if m.closed.Load() {
		return false
	}
	return m.queue.submit(fn)
}

// call runs fn on the mutation queue and waits for it.
func (m *Manager) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !m.submit(func() { defer close(done); fn() }) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settle waits until every mutation submitted before the call has been
// applied on the mutation queue.
func (m *Manager) Settle(ctx context.Context) error {
	return m.queue.drain(ctx)
}

// Flush waits for the mutation queue and then for the delivery executor, so
// that every notification produced by earlier calls has been delivered.
func (m *Manager) Flush(ctx context.Context) error {
	if err := m.Settle(ctx); err != nil {
		return err
	}
	done := make(chan struct{})
	if err := m.exec.Post(func() { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting mutations, waits for queued ones to finish and closes
// the owned delivery loop. Later submissions complete with ErrClosed.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.queue.close()
	<-m.queue.stopped
	if m.ownLoop != nil {
		m.ownLoop.Close()
	}
	m.log.Debug().Str("event", "closed").Msg("manager closed")
	return nil
}

// Lookup returns the latest merged node stored for id. Tracked descendants of
// a Composer node carry their own latest state; deleted ones are left out.
func (m *Manager) Lookup(ctx context.Context, id ID) (Node, bool, error) {
	var (
		n  Node
		ok bool
	)
	err := m.call(ctx, func() { n, ok = m.store.view(id) })
	return n, ok, err
}

// Entries returns the live subscriptions registered for id. Dead entries
// found along the way are pruned.
func (m *Manager) Entries(ctx context.Context, id ID) ([]*Subscription, error) {
	var out []*Subscription
	err := m.call(ctx, func() {
		var pruned int
		out, pruned = m.reg.entriesFor(id)
		m.countPruned(pruned)
	})
	return out, err
}

// EntryCount returns the raw number of entries in the bucket for id, dead
// references included. It does not prune.
func (m *Manager) EntryCount(ctx context.Context, id ID) (int, error) {
	var n int
	err := m.call(ctx, func() { n = m.reg.bucketLen(id) })
	return n, err
}

func (m *Manager) nextSeq() uint64 {
	m.seq++
	m.lastSeq.Store(m.seq)
	return m.seq
}

func (m *Manager) countPruned(n int) {
	if n == 0 {
		return
	}
	m.pruned.Add(uint64(n))
	prunedEntriesTotal.Add(float64(n))
	m.log.Debug().Str("event", "prune_lazy").Int("entries", n).Msg("dropped dead listeners")
}

func (m *Manager) setLastError(err error) {
	s := err.Error()
	m.lastErr.Store(&s)
}

// verify checks registry invariants in debug mode.
func (m *Manager) verify() {
	if !m.debug {
		return
	}
	if err := m.reg.check(); err != nil {
		panic(err)
	}
}

func (m *Manager) onQueuePanic(v any) {
	if m.debug {
		panic(v)
	}
	err := fmt.Errorf("mutation queue task panicked: %v", v)
	m.setLastError(err)
	m.log.Error().Str("event", "queue_panic").Err(err).Msg("internal invariant violated")
}

func (m *Manager) onDeliveryPanic(v any) {
	err := fmt.Errorf("delivery task panicked: %v", v)
	m.setLastError(err)
	m.log.Error().Str("event", "delivery_panic").Err(err).Msg("delivery loop task failed")
}
