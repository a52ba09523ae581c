package manager

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/trace"
)

// Op tracks one update or delete submitted to the mutation queue. It
// completes once the pass has been applied and its notifications handed to
// the delivery executor.
type Op struct {
	done chan struct{}
	seq  uint64
	err  error
}

func newOp() *Op { return &Op{done: make(chan struct{})} }

func (o *Op) finish(seq uint64, err error) {
	o.seq = seq
	o.err = err
	close(o.done)
}

// Done is closed when the pass has settled.
func (o *Op) Done() <-chan struct{} { return o.done }

// Err returns the pass result; nil until Done is closed. A *MergeError lists
// IDs that failed to merge while the rest of the pass was applied.
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Seq returns the pass sequence number, or 0 until Done is closed.
func (o *Op) Seq() uint64 {
	select {
	case <-o.done:
		return o.seq
	default:
		return 0
	}
}

// Wait blocks until the pass settles or ctx is done.
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers l for ids and returns its subscription handle. The
// registration settles asynchronously.
func (m *Manager) Subscribe(l Listener, ids ...ID) *Subscription {
	s := m.newSubscription(l)
	ref := s.ref
	ids = slices.Clone(ids)
	if !m.submit(func() {
		n := m.reg.register(ref, ids...)
		m.verify()
		m.publish(Event{Name: "subscribe", Fields: map[string]any{"ids": len(ids), "added": n}})
	}) {
		m.rejectSubscription(s)
	}
	return s
}

// SubscribeTree registers l for every tracked ID in root, the model the
// listener currently displays. IDs the manager has no state for yet are
// seeded from root.
func (m *Manager) SubscribeTree(l Listener, root Node) *Subscription {
	s := m.newSubscription(l)
	ref := s.ref
	if !m.submit(func() {
		var ids []ID
		seeded := 0
		Walk(root, func(n Node, _ int) bool {
			id := n.ModelID()
			if id == "" {
				return true
			}
			ids = append(ids, id)
			if _, ok := m.store.get(id); !ok {
				m.store.put(id, n)
				seeded++
			}
			return true
		})
		n := m.reg.register(ref, ids...)
		m.verify()
		m.publish(Event{Name: "subscribe", ModelID: root.ModelID(), Fields: map[string]any{"ids": len(ids), "added": n, "seeded": seeded}})
	}) {
		m.rejectSubscription(s)
	}
	return s
}

// rejectSubscription marks s closed when the manager no longer accepts work.
func (m *Manager) rejectSubscription(s *Subscription) {
	s.closed.Store(true)
	m.log.Debug().Str("event", "subscribe_rejected").Err(ErrClosed).Msg("manager closed; subscription not registered")
}

func (m *Manager) listen(s *Subscription, ids []ID) {
	if s == nil || s.closed.Load() {
		return
	}
	ref := s.ref
	ids = slices.Clone(ids)
	m.submit(func() {
		m.reg.register(ref, ids...)
		m.verify()
	})
}

// Unsubscribe removes every registration of s. Deliveries not yet made to s
// are discarded. Unknown or already closed subscriptions are ignored.
func (m *Manager) Unsubscribe(s *Subscription) {
	if s == nil || s.closed.Swap(true) {
		return
	}
	ref := s.ref
	m.submit(func() {
		m.reg.unregister(ref)
		m.verify()
		m.publish(Event{Name: "unsubscribe"})
	})
}

// Pause stops deliveries to s immediately. Changes made while paused are
// remembered and delivered by Resume.
func (m *Manager) Pause(s *Subscription) {
	if s == nil {
		return
	}
	s.paused.Store(true)
}

// Resume re-enables deliveries to s and schedules a catch-up pass delivering
// the latest state of every ID that changed while s was paused.
func (m *Manager) Resume(s *Subscription) {
	if s == nil || s.closed.Load() || !s.paused.Swap(false) {
		return
	}
	m.submit(func() { m.catchUp(s) })
}

// Update merges root's tree into the stored state and notifies interested
// listeners. ctx only links the pass to the caller's trace; opaque is handed
// to listeners untouched.
func (m *Manager) Update(ctx context.Context, root Node, opaque any) *Op {
	op := newOp()
	sc := trace.SpanContextFromContext(ctx)
	if !m.submit(guard(op, func() { m.runPass(sc, "update", op, opaque, func(p *pass) error { return m.applyUpdate(p, root) }) })) {
		op.finish(0, ErrClosed)
	}
	return op
}

// Delete removes every tracked model in root's tree and notifies listeners of
// the deletions.
func (m *Manager) Delete(ctx context.Context, root Node, opaque any) *Op {
	op := newOp()
	sc := trace.SpanContextFromContext(ctx)
	if !m.submit(guard(op, func() {
		m.runPass(sc, "delete", op, opaque, func(p *pass) error { return m.applyDelete(p, TrackedIDs(root)) })
	})) {
		op.finish(0, ErrClosed)
	}
	return op
}

// DeleteID removes id and, when stored, the tracked models below it.
func (m *Manager) DeleteID(ctx context.Context, id ID, opaque any) *Op {
	op := newOp()
	sc := trace.SpanContextFromContext(ctx)
	if !m.submit(guard(op, func() {
		m.runPass(sc, "delete", op, opaque, func(p *pass) error {
			ids := []ID{id}
			if n, ok := m.store.get(id); ok {
				ids = TrackedIDs(n)
			}
			return m.applyDelete(p, ids)
		})
	})) {
		op.finish(0, ErrClosed)
	}
	return op
}

// guard completes op with an error when task panics, then re-raises so the
// queue's panic policy applies.
func guard(op *Op, task func()) func() {
	return func() {
		defer func() {
			if v := recover(); v != nil {
				select {
				case <-op.done:
				default:
					op.finish(0, fmt.Errorf("pass aborted: %v", v))
				}
				panic(v)
			}
		}()
		task()
	}
}
