package manager

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// pass accumulates the notifications produced by one queue task.
type pass struct {
	seq     uint64
	opaque  any
	catchUp bool
	changes int
	order   []*Subscription
	batches map[*Subscription]*batch
}

type batch struct {
	changes []Change
	index   map[ID]int
}

func newPass(seq uint64, opaque any) *pass {
	return &pass{seq: seq, opaque: opaque, batches: make(map[*Subscription]*batch)}
}

// add queues c for s. A second change to the same ID replaces the first so a
// listener sees each ID at most once per pass.
func (p *pass) add(s *Subscription, c Change) {
	b := p.batches[s]
	if b == nil {
		b = &batch{index: make(map[ID]int)}
		p.batches[s] = b
		p.order = append(p.order, s)
	}
	if i, ok := b.index[c.ID]; ok {
		b.changes[i] = c
		return
	}
	b.index[c.ID] = len(b.changes)
	b.changes = append(b.changes, c)
}

func (p *pass) notification(s *Subscription) Notification {
	return Notification{Seq: p.seq, Changes: p.batches[s].changes, Context: p.opaque, CatchUp: p.catchUp}
}

// runPass executes apply inside a span, hands the result to the executor and
// completes op.
func (m *Manager) runPass(sc trace.SpanContext, kind string, op *Op, opaque any, apply func(*pass) error) {
	seq := m.nextSeq()
	queueDepth.Set(float64(m.queue.len()))
	_, span := m.tracer.Start(trace.ContextWithSpanContext(context.Background(), sc), "manager."+kind,
		trace.WithAttributes(attribute.Int64("modelsync.seq", int64(seq))))
	defer span.End()

	p := newPass(seq, opaque)
	err := apply(p)
	m.verify()
	span.SetAttributes(
		attribute.Int("modelsync.changes", p.changes),
		attribute.Int("modelsync.listeners", len(p.order)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.setLastError(err)
		for _, id := range FailedIDs(err) {
			m.publish(Event{Name: "merge_conflict", ModelID: id})
		}
		m.log.Warn().Str("event", kind+"_conflict").Uint64("seq", seq).Err(err).Msg("pass applied with conflicts")
	}
	m.deliver(p)
	m.passes.Add(1)
	passesTotal.WithLabelValues(kind).Inc()
	m.publish(Event{Name: kind + "_done", Fields: map[string]any{"seq": seq, "changes": p.changes, "listeners": len(p.order)}})
	m.log.Debug().Str("event", kind+"_done").Uint64("seq", seq).Int("changes", p.changes).Int("listeners", len(p.order)).Msg("pass settled")
	op.finish(seq, err)
}

// applyUpdate merges every tracked node of root into the store and fans the
// resulting changes out to listeners. Changes carry the stored view, built
// once the whole tree has been merged.
func (m *Manager) applyUpdate(p *pass, root Node) error {
	var (
		changes   []Change
		slot      = make(map[ID]int)
		conflicts []MergeConflict
	)
	Walk(root, func(n Node, _ int) bool {
		id := n.ModelID()
		if id == "" {
			return true
		}
		merged := n
		if stored, ok := m.store.get(id); ok {
			out, err := m.merger.Merge(stored, n)
			if err != nil {
				conflicts = append(conflicts, MergeConflict{ID: id, Err: err})
				return false
			}
			if out != nil {
				merged = out
			}
		}
		m.store.put(id, merged)
		if i, ok := slot[id]; ok {
			changes[i].Node = merged
		} else {
			slot[id] = len(changes)
			changes = append(changes, Change{ID: id, Node: merged})
		}
		return true
	})
	for _, c := range changes {
		if v, ok := m.store.view(c.ID); ok {
			c.Node = v
		}
		m.fanOut(p, c)
	}
	p.changes = len(changes)
	if len(conflicts) > 0 {
		m.conflicts.Add(uint64(len(conflicts)))
		mergeConflictsTotal.Add(float64(len(conflicts)))
		return &MergeError{Conflicts: conflicts}
	}
	return nil
}

// applyDelete notifies listeners of each id and its ancestors, then forgets
// the ids in the store and the registry.
func (m *Manager) applyDelete(p *pass, ids []ID) error {
	for _, id := range ids {
		m.fanOut(p, Change{ID: id, Deleted: true})
	}
	for _, id := range ids {
		m.store.remove(id)
		m.reg.dropID(id)
	}
	p.changes = len(ids)
	return nil
}

// fanOut routes c to listeners registered on c.ID or on any stored ancestor.
// Listeners told about an updated node also start observing its tracked
// descendants.
func (m *Manager) fanOut(p *pass, c Change) {
	targets, pruned := m.reg.entriesFor(c.ID)
	for _, a := range m.store.ancestors(c.ID) {
		subs, n := m.reg.entriesFor(a)
		targets = append(targets, subs...)
		pruned += n
	}
	m.countPruned(pruned)
	if len(targets) == 0 {
		return
	}
	var desc []ID
	if !c.Deleted && c.Node != nil {
		desc = descendantIDs(c.Node)
	}
	seen := make(map[*Subscription]struct{}, len(targets))
	for _, s := range targets {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if s.closed.Load() {
			continue
		}
		if s.paused.Load() {
			m.reg.markMissed(s.ref, c.ID, p.opaque)
			notificationsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		p.add(s, c)
		if len(desc) > 0 {
			m.reg.register(s.ref, desc...)
		}
	}
}

// catchUp delivers the latest state of every ID s missed while paused.
func (m *Manager) catchUp(s *Subscription) {
	ids, opaque := m.reg.takeMissed(s.ref)
	if len(ids) == 0 || s.closed.Load() {
		return
	}
	p := newPass(m.nextSeq(), opaque)
	p.catchUp = true
	for _, id := range ids {
		if n, ok := m.store.view(id); ok {
			p.add(s, Change{ID: id, Node: n})
		} else {
			p.add(s, Change{ID: id, Deleted: true})
		}
	}
	p.changes = len(ids)
	m.deliver(p)
	m.passes.Add(1)
	passesTotal.WithLabelValues("catch_up").Inc()
	m.publish(Event{Name: "catch_up_done", Fields: map[string]any{"seq": p.seq, "changes": len(ids)}})
}
