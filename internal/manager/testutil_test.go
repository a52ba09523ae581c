package manager

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"
)

// node is a minimal Node used across tests.
type node struct {
	id      ID
	payload string
	kind    string
	kids    []*node
}

func (n *node) ModelID() ID { return n.id }

func (n *node) Children() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, k := range n.kids {
			if !yield(k) {
				return
			}
		}
	}
}

func (n *node) WithChildren(children []Node) Node {
	out := &node{id: n.id, payload: n.payload, kind: n.kind}
	for _, c := range children {
		out.kids = append(out.kids, c.(*node))
	}
	return out
}

func leaf(id ID, payload string) *node { return &node{id: id, payload: payload} }

func tree(id ID, payload string, kids ...*node) *node {
	return &node{id: id, payload: payload, kids: kids}
}

func payloadOf(t *testing.T, n Node) string {
	t.Helper()
	tn, ok := n.(*node)
	if !ok {
		t.Fatalf("unexpected node type %T", n)
	}
	return tn.payload
}

// recorder is a Listener that keeps every notification it receives.
type recorder struct {
	mu  sync.Mutex
	got []Notification
}

func (r *recorder) ModelsChanged(n Notification) {
	r.mu.Lock()
	r.got = append(r.got, n)
	r.mu.Unlock()
}

func (r *recorder) notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.got))
	copy(out, r.got)
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// gateExecutor holds posted functions until release is called.
type gateExecutor struct {
	mu     sync.Mutex
	held   []func()
	closed bool
}

func (g *gateExecutor) Post(fn func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrDeliveryUnavailable
	}
	g.held = append(g.held, fn)
	return nil
}

func (g *gateExecutor) release() {
	g.mu.Lock()
	fns := g.held
	g.held = nil
	g.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func settle(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.Settle(testCtx(t)); err != nil {
		t.Fatalf("settle: %v", err)
	}
}

func flush(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.Flush(testCtx(t)); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func update(t *testing.T, m *Manager, n Node, opaque any) error {
	t.Helper()
	err := m.Update(testCtx(t), n, opaque).Wait(testCtx(t))
	flush(t, m)
	return err
}

func entryCount(t *testing.T, m *Manager, id ID) int {
	t.Helper()
	n, err := m.EntryCount(testCtx(t), id)
	if err != nil {
		t.Fatalf("EntryCount(%q): %v", id, err)
	}
	return n
}

func lookup(t *testing.T, m *Manager, id ID) (Node, bool) {
	t.Helper()
	n, ok, err := m.Lookup(testCtx(t), id)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", id, err)
	}
	return n, ok
}
