package manager

// LowMemory is the memory-pressure signal. It schedules a sweep of the
// registry that drops dead listener references and empty buckets, and
// returns immediately; Settle observes the result.
func (m *Manager) LowMemory() {
	m.submit(m.prune)
}

func (m *Manager) prune() {
	before, _, _ := m.reg.counts()
	n := m.reg.sweep()
	after, _, _ := m.reg.counts()
	m.verify()
	if n > 0 {
		m.pruned.Add(uint64(n))
		prunedEntriesTotal.Add(float64(n))
	}
	passesTotal.WithLabelValues("prune").Inc()
	m.publish(Event{Name: "prune_done", Fields: map[string]any{"entries": n, "buckets_removed": before - after}})
	m.log.Info().Str("event", "prune_done").Int("entries", n).Int("buckets", after).Msg("low memory sweep")
}
