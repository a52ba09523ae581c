package manager

import (
	"context"
	"time"

	"modelsync/pkg/types"
)

// Snapshot returns a read-only view of the manager counters. It does not
// touch the mutation queue.
func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{
		State:     StateRunning,
		Passes:    m.passes.Load(),
		Conflicts: m.conflicts.Load(),
		Delivered: m.delivered.Load(),
		Dropped:   m.dropped.Load(),
		Pruned:    m.pruned.Load(),
		QueueLen:  m.queue.len(),
		LastSeq:   m.lastSeq.Load(),
	}
	if m.closed.Load() {
		s.State = StateClosed
	}
	if p := m.lastErr.Load(); p != nil {
		s.LastError = *p
	}
	return s
}

// Status builds a detailed status response for /status. Registry counts are
// read on the mutation queue; dead entries are counted, not pruned.
func (m *Manager) Status(ctx context.Context) (types.StatusResponse, error) {
	snap := m.Snapshot()
	resp := types.StatusResponse{
		State:          string(snap.State),
		QueueLen:       snap.QueueLen,
		PassesTotal:    snap.Passes,
		ConflictsTotal: snap.Conflicts,
		DeliveredTotal: snap.Delivered,
		DroppedTotal:   snap.Dropped,
		PrunedTotal:    snap.Pruned,
		LastSeq:        snap.LastSeq,
		LastError:      snap.LastError,
		UptimeSeconds:  int64(time.Since(m.startTime) / time.Second),
		ServerTimeUnix: time.Now().Unix(),
	}
	if snap.State == StateClosed {
		return resp, nil
	}
	err := m.call(ctx, func() {
		resp.TrackedModels = m.store.len()
		resp.Buckets, resp.Entries, resp.Listeners = m.reg.counts()
	})
	return resp, err
}

// Ready reports whether the manager accepts mutations.
func (m *Manager) Ready() bool { return !m.closed.Load() }
