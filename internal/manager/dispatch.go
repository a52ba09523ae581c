package manager

import (
	"fmt"
	"time"
)

type delivery struct {
	sub *Subscription
	n   Notification
}

// deliver hands the batches of p to the executor as one unit, so notifications
// of one pass are never interleaved with those of another.
func (m *Manager) deliver(p *pass) {
	if len(p.order) == 0 {
		return
	}
	items := make([]delivery, 0, len(p.order))
	for _, s := range p.order {
		items = append(items, delivery{sub: s, n: p.notification(s)})
	}
	posted := time.Now()
	err := m.exec.Post(func() {
		for _, d := range items {
			m.invoke(d)
		}
		deliverySeconds.Observe(time.Since(posted).Seconds())
	})
	if err != nil {
		m.dropped.Add(uint64(len(items)))
		notificationsTotal.WithLabelValues("dropped").Add(float64(len(items)))
		m.setLastError(err)
		m.publish(Event{Name: "delivery_dropped", Fields: map[string]any{"seq": p.seq, "listeners": len(items)}})
		m.log.Error().Str("event", "delivery_dropped").Uint64("seq", p.seq).Int("listeners", len(items)).Err(err).Msg("dropping notification batch")
	}
}

// invoke runs on the executor. Subscription state is re-checked here: a
// listener closed or paused after its batch was computed is not called.
func (m *Manager) invoke(d delivery) {
	s := d.sub
	if s.closed.Load() {
		notificationsTotal.WithLabelValues("skipped").Inc()
		return
	}
	if s.paused.Load() {
		notificationsTotal.WithLabelValues("skipped").Inc()
		m.deferToResume(s, d.n)
		return
	}
	defer func() {
		if v := recover(); v != nil {
			err := fmt.Errorf("listener panicked: %v", v)
			m.setLastError(err)
			m.log.Error().Str("event", "listener_panic").Uint64("seq", d.n.Seq).Err(err).Msg("listener failed")
		}
	}()
	s.listener.ModelsChanged(d.n)
	m.delivered.Add(1)
	notificationsTotal.WithLabelValues("delivered").Inc()
}

// deferToResume records the changes of a delivery that found its listener
// paused, so the next Resume replays them. A Resume that ran in between has
// already taken the missed set; the changes are then replayed right away.
func (m *Manager) deferToResume(s *Subscription, n Notification) {
	m.submit(func() {
		if s.closed.Load() {
			return
		}
		for _, c := range n.Changes {
			m.reg.markMissed(s.ref, c.ID, n.Context)
		}
		if !s.paused.Load() {
			m.catchUp(s)
		}
	})
}
