package manager

import (
	"runtime"
	"slices"
	"testing"
	"weak"
)

func newRef() (*Subscription, subRef) {
	s := &Subscription{}
	s.ref = weak.Make(s)
	return s, s.ref
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := newRegistry()
	s, ref := newRef()
	if n := r.register(ref, "a", "b", "a", ""); n != 2 {
		t.Fatalf("added %d, want 2", n)
	}
	if n := r.register(ref, "a"); n != 0 {
		t.Fatalf("re-register added %d", n)
	}
	if r.bucketLen("a") != 1 || r.bucketLen("") != 0 {
		t.Fatalf("unexpected buckets: %v", r.buckets)
	}
	if err := r.check(); err != nil {
		t.Fatalf("check: %v", err)
	}
	runtime.KeepAlive(s)
}

func TestRegistryUnregisterDropsEmptyBuckets(t *testing.T) {
	r := newRegistry()
	s1, ref1 := newRef()
	s2, ref2 := newRef()
	r.register(ref1, "a", "b")
	r.register(ref2, "b")
	r.unregister(ref1)
	if _, ok := r.buckets["a"]; ok {
		t.Fatalf("empty bucket a retained")
	}
	got, _ := r.entriesFor("b")
	if len(got) != 1 || got[0] != s2 {
		t.Fatalf("bucket b: %v", got)
	}
	if b, e, l := r.counts(); b != 1 || e != 1 || l != 1 {
		t.Fatalf("counts = %d %d %d", b, e, l)
	}
	runtime.KeepAlive(s1)
	runtime.KeepAlive(s2)
}

func TestRegistryEntriesForPrunesDeadReferences(t *testing.T) {
	r := newRegistry()
	live, liveRef := newRef()
	func() {
		_, ref := newRef()
		r.register(ref, "x")
	}()
	r.register(liveRef, "x")
	runtime.GC()
	runtime.GC()
	got, pruned := r.entriesFor("x")
	if pruned != 1 || len(got) != 1 || got[0] != live {
		t.Fatalf("entriesFor: got %v pruned %d", got, pruned)
	}
	if r.bucketLen("x") != 1 || len(r.states) != 1 {
		t.Fatalf("dead state kept: buckets=%v states=%d", r.buckets, len(r.states))
	}
	runtime.KeepAlive(live)
}

func TestRegistrySweepRemovesOnlyDead(t *testing.T) {
	r := newRegistry()
	live, liveRef := newRef()
	r.register(liveRef, "keep")
	func() {
		_, ref := newRef()
		r.register(ref, "keep", "gone")
	}()
	runtime.GC()
	runtime.GC()
	if n := r.sweep(); n != 2 {
		t.Fatalf("sweep removed %d, want 2", n)
	}
	if _, ok := r.buckets["gone"]; ok {
		t.Fatalf("bucket gone kept")
	}
	if r.bucketLen("keep") != 1 {
		t.Fatalf("live entry removed")
	}
	runtime.KeepAlive(live)
}

func TestRegistryMissedIDs(t *testing.T) {
	r := newRegistry()
	s, ref := newRef()
	r.markMissed(ref, "b", 1)
	r.markMissed(ref, "a", 2)
	r.markMissed(ref, "b", 3)
	ids, ctx := r.takeMissed(ref)
	if !slices.Equal(ids, []ID{"a", "b"}) || ctx != 3 {
		t.Fatalf("takeMissed = %v %v", ids, ctx)
	}
	if ids, _ := r.takeMissed(ref); ids != nil {
		t.Fatalf("missed not cleared: %v", ids)
	}
	runtime.KeepAlive(s)
}

func TestRegistryDropID(t *testing.T) {
	r := newRegistry()
	s, ref := newRef()
	r.register(ref, "x", "y")
	r.dropID("x")
	if r.bucketLen("x") != 0 {
		t.Fatalf("bucket x kept")
	}
	if _, ok := r.states[ref].ids["x"]; ok {
		t.Fatalf("x still in interest set")
	}
	// x can be registered again.
	if n := r.register(ref, "x"); n != 1 {
		t.Fatalf("re-register after drop added %d", n)
	}
	runtime.KeepAlive(s)
}

func TestRegistryCheckDetectsCorruption(t *testing.T) {
	r := newRegistry()
	s, ref := newRef()
	r.register(ref, "x")
	r.buckets["x"] = append(r.buckets["x"], ref)
	if err := r.check(); err == nil {
		t.Fatalf("duplicate entry not detected")
	}
	r.buckets["x"] = r.buckets["x"][:1]
	r.buckets["y"] = nil
	if err := r.check(); err == nil {
		t.Fatalf("empty bucket not detected")
	}
	runtime.KeepAlive(s)
}
