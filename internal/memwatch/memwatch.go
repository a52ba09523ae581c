// Package memwatch turns host memory pressure into low-memory signals.
package memwatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	availablePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "modelsync",
		Subsystem: "memwatch",
		Name:      "available_percent",
		Help:      "Last sampled available memory as a percentage of total",
	})
	signalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelsync",
		Subsystem: "memwatch",
		Name:      "low_memory_signals_total",
		Help:      "Low-memory signals raised by the watcher",
	})
)

func init() {
	prometheus.MustRegister(availablePercent, signalsTotal)
}

// Sampler reports available memory as a percentage of total.
type Sampler func(ctx context.Context) (float64, error)

// SystemSampler samples host virtual memory.
func SystemSampler(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	if vm.Total == 0 {
		return 0, fmt.Errorf("virtual memory: total is zero")
	}
	return float64(vm.Available) / float64(vm.Total) * 100, nil
}

type Config struct {
	Interval            time.Duration
	MinAvailablePercent float64
	// Sampler defaults to SystemSampler.
	Sampler Sampler
	Logger  *zerolog.Logger
}

// Watcher calls onLow once each time available memory falls below the
// threshold. It re-arms when memory climbs back above it.
type Watcher struct {
	cfg   Config
	onLow func()
	log   zerolog.Logger

	mu        sync.Mutex
	low       bool
	triggered int
}

func New(cfg Config, onLow func()) *Watcher {
	if cfg.Sampler == nil {
		cfg.Sampler = SystemSampler
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	w := &Watcher{cfg: cfg, onLow: onLow, log: zerolog.Nop()}
	if cfg.Logger != nil {
		w.log = cfg.Logger.With().Str("component", "memwatch").Logger()
	}
	return w
}

// Check takes one sample and reports whether it raised a signal.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	pct, err := w.cfg.Sampler(ctx)
	if err != nil {
		return false, err
	}
	availablePercent.Set(pct)
	w.mu.Lock()
	wasLow := w.low
	w.low = pct < w.cfg.MinAvailablePercent
	fire := w.low && !wasLow
	if fire {
		w.triggered++
	}
	w.mu.Unlock()
	if fire {
		signalsTotal.Inc()
		w.log.Warn().Str("event", "low_memory").Float64("available_percent", pct).Float64("threshold", w.cfg.MinAvailablePercent).Msg("memory pressure")
		w.onLow()
	} else if wasLow && !w.low {
		w.log.Info().Str("event", "memory_recovered").Float64("available_percent", pct).Msg("memory pressure cleared")
	}
	return fire, nil
}

// Run samples every Interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()
	for {
		if _, err := w.Check(ctx); err != nil && ctx.Err() == nil {
			w.log.Error().Str("event", "sample_failed").Err(err).Msg("memory sample failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Triggered returns how many signals were raised.
func (w *Watcher) Triggered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.triggered
}
