package manager

import (
	"fmt"
	"slices"
	"weak"
)

type subRef = weak.Pointer[Subscription]

// listenerState is the per-listener bookkeeping kept next to the buckets.
type listenerState struct {
	ids       map[ID]struct{}
	missed    map[ID]struct{}
	missedCtx any
}

// registry maps IDs to the listeners interested in them. It is only touched
// from the mutation queue goroutine.
type registry struct {
	buckets map[ID][]subRef
	states  map[subRef]*listenerState
}

func newRegistry() *registry {
	return &registry{
		buckets: make(map[ID][]subRef),
		states:  make(map[subRef]*listenerState),
	}
}

func (r *registry) state(ref subRef) *listenerState {
	st := r.states[ref]
	if st == nil {
		st = &listenerState{ids: make(map[ID]struct{})}
		r.states[ref] = st
	}
	return st
}

// register adds ref under each id. Pairs already present are left alone.
func (r *registry) register(ref subRef, ids ...ID) int {
	st := r.state(ref)
	added := 0
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := st.ids[id]; ok {
			continue
		}
		st.ids[id] = struct{}{}
		r.buckets[id] = append(r.buckets[id], ref)
		added++
	}
	return added
}

// unregister removes every entry for ref.
func (r *registry) unregister(ref subRef) {
	st := r.states[ref]
	if st == nil {
		return
	}
	for id := range st.ids {
		r.removeFromBucket(id, ref)
	}
	delete(r.states, ref)
}

func (r *registry) removeFromBucket(id ID, ref subRef) {
	b := slices.DeleteFunc(r.buckets[id], func(e subRef) bool { return e == ref })
	if len(b) == 0 {
		delete(r.buckets, id)
		return
	}
	r.buckets[id] = b
}

// entriesFor returns the live subscriptions registered for id, in
// registration order. Dead references are dropped from the bucket.
func (r *registry) entriesFor(id ID) ([]*Subscription, int) {
	b, ok := r.buckets[id]
	if !ok {
		return nil, 0
	}
	out := make([]*Subscription, 0, len(b))
	kept := b[:0]
	for _, ref := range b {
		if s := ref.Value(); s != nil {
			kept = append(kept, ref)
			out = append(out, s)
			continue
		}
		delete(r.states, ref)
	}
	pruned := len(b) - len(kept)
	clear(b[len(kept):])
	if len(kept) == 0 {
		delete(r.buckets, id)
	} else {
		r.buckets[id] = kept
	}
	return out, pruned
}

// dropID removes the bucket for id and forgets id in every interest set.
func (r *registry) dropID(id ID) {
	for _, ref := range r.buckets[id] {
		if st := r.states[ref]; st != nil {
			delete(st.ids, id)
		}
	}
	delete(r.buckets, id)
}

// markMissed records that ref skipped a change to id while paused.
func (r *registry) markMissed(ref subRef, id ID, ctx any) {
	st := r.state(ref)
	if st.missed == nil {
		st.missed = make(map[ID]struct{})
	}
	st.missed[id] = struct{}{}
	st.missedCtx = ctx
}

// takeMissed returns and clears the missed IDs of ref, sorted.
func (r *registry) takeMissed(ref subRef) ([]ID, any) {
	st := r.states[ref]
	if st == nil || len(st.missed) == 0 {
		return nil, nil
	}
	ids := make([]ID, 0, len(st.missed))
	for id := range st.missed {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ctx := st.missedCtx
	st.missed = nil
	st.missedCtx = nil
	return ids, ctx
}

// sweep drops every dead reference and empty bucket. It returns the number of
// entries removed.
func (r *registry) sweep() int {
	pruned := 0
	for id := range r.buckets {
		_, n := r.entriesFor(id)
		pruned += n
	}
	for ref := range r.states {
		if ref.Value() == nil {
			delete(r.states, ref)
		}
	}
	return pruned
}

func (r *registry) bucketLen(id ID) int { return len(r.buckets[id]) }

// counts returns buckets, entries and listener states without pruning.
func (r *registry) counts() (buckets, entries, listeners int) {
	for _, b := range r.buckets {
		entries += len(b)
	}
	return len(r.buckets), entries, len(r.states)
}

// check verifies the bucket/state cross-references.
func (r *registry) check() error {
	for id, b := range r.buckets {
		if len(b) == 0 {
			return fmt.Errorf("registry: empty bucket %q retained", id)
		}
		seen := make(map[subRef]struct{}, len(b))
		for _, ref := range b {
			if _, dup := seen[ref]; dup {
				return fmt.Errorf("registry: duplicate entry in bucket %q", id)
			}
			seen[ref] = struct{}{}
			st := r.states[ref]
			if st == nil {
				if ref.Value() == nil {
					continue
				}
				return fmt.Errorf("registry: live entry in bucket %q without state", id)
			}
			if _, ok := st.ids[id]; !ok {
				return fmt.Errorf("registry: bucket %q not in listener interest set", id)
			}
		}
	}
	return nil
}
