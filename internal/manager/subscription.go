package manager

import (
	"sync/atomic"
	"weak"
)

// Subscription is the handle a listener is registered through. The manager
// keeps only a weak reference to it: once the caller drops every reference to
// the Subscription, its registry entries become dead and are pruned lazily or
// by LowMemory. Keep the Subscription for as long as the listener should
// receive notifications.
type Subscription struct {
	m        *Manager
	listener Listener
	ref      weak.Pointer[Subscription]
	paused   atomic.Bool
	closed   atomic.Bool
}

func (m *Manager) newSubscription(l Listener) *Subscription {
	s := &Subscription{m: m, listener: l}
	s.ref = weak.Make(s)
	return s
}

// Listen adds ids to the subscription's interest set.
func (s *Subscription) Listen(ids ...ID) { s.m.listen(s, ids) }

// Pause stops deliveries until Resume. It takes effect immediately.
func (s *Subscription) Pause() { s.m.Pause(s) }

// Resume re-enables deliveries and schedules a catch-up for anything missed.
func (s *Subscription) Resume() { s.m.Resume(s) }

// Close unregisters the subscription. Pending deliveries are discarded.
func (s *Subscription) Close() { s.m.Unsubscribe(s) }

func (s *Subscription) Paused() bool { return s.paused.Load() }

func (s *Subscription) Closed() bool { return s.closed.Load() }

// Listener returns the listener the subscription delivers to.
func (s *Subscription) Listener() Listener { return s.listener }
