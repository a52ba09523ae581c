package memwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type scripted struct {
	mu      sync.Mutex
	samples []float64
}

func (s *scripted) sample(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return 50, nil
	}
	v := s.samples[0]
	s.samples = s.samples[1:]
	return v, nil
}

func TestCheckFiresOncePerTransition(t *testing.T) {
	src := &scripted{samples: []float64{40, 5, 3, 20, 8}}
	calls := 0
	w := New(Config{MinAvailablePercent: 10, Sampler: src.sample}, func() { calls++ })
	before := testutil.ToFloat64(signalsTotal)
	var fired []bool
	for range 5 {
		ok, err := w.Check(context.Background())
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		fired = append(fired, ok)
	}
	want := []bool{false, true, false, false, true}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("sample %d fired=%v want %v", i, fired[i], want[i])
		}
	}
	if calls != 2 || w.Triggered() != 2 {
		t.Fatalf("calls=%d triggered=%d", calls, w.Triggered())
	}
	if d := testutil.ToFloat64(signalsTotal) - before; d != 2 {
		t.Fatalf("signals metric delta %v", d)
	}
	if v := testutil.ToFloat64(availablePercent); v != 8 {
		t.Fatalf("available gauge %v", v)
	}
}

func TestCheckPropagatesSamplerError(t *testing.T) {
	boom := errors.New("boom")
	w := New(Config{MinAvailablePercent: 10, Sampler: func(context.Context) (float64, error) { return 0, boom }}, func() {
		t.Fatalf("onLow called on sampler error")
	})
	if _, err := w.Check(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected sampler error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &scripted{samples: []float64{1}}
	signaled := make(chan struct{}, 1)
	w := New(Config{Interval: time.Millisecond, MinAvailablePercent: 10, Sampler: src.sample}, func() {
		signaled <- struct{}{}
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()
	select {
	case <-signaled:
	case <-time.After(2 * time.Second):
		t.Fatalf("no signal from Run")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestSystemSampler(t *testing.T) {
	pct, err := SystemSampler(context.Background())
	if err != nil {
		t.Skipf("virtual memory unavailable: %v", err)
	}
	if pct < 0 || pct > 100 {
		t.Fatalf("available percent out of range: %v", pct)
	}
}
