// Package netstatus tracks connectivity and fans out transitions to subscribers.
package netstatus

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/hirely/hirely-cli/internal/apierr"
)

var networkPatterns = []string{
	"failed to fetch",
	"network",
	"connection",
	"offline",
	"internet",
	"timeout",
}

// Monitor is the single source of truth for "is the device connected".
// Create one per process and pass it to the components that need it.
type Monitor struct {
	online atomic.Bool
	known  atomic.Bool
	setMu  sync.Mutex

	mu     sync.Mutex
	nextID uint64
	order  []uint64
	subs   map[uint64]func(bool)
}

// NewMonitor returns a Monitor that reports online until a signal says otherwise.
func NewMonitor() *Monitor {
	return &Monitor{subs: make(map[uint64]func(bool))}
}

// IsOnline reports the last observed connectivity. Without any observation
// it fails open and reports true.
func (m *Monitor) IsOnline() bool {
	if !m.known.Load() {
		return true
	}
	return m.online.Load()
}

// Set records an observed connectivity state and notifies subscribers when
// it differs from the previous one.
func (m *Monitor) Set(online bool) {
	m.setMu.Lock()
	defer m.setMu.Unlock()

	prev := m.IsOnline()
	m.online.Store(online)
	m.known.Store(true)
	if prev == online {
		return
	}
	zap.L().Info("network status changed", zap.Bool("online", online))
	m.notify(online)
}

// Subscribe registers cb, calls it immediately with the current state and
// again on every transition. The returned func unregisters it; calling it
// more than once is a no-op. The initial call is serialized with Set, so cb
// never sees a transition before the state it started from.
func (m *Monitor) Subscribe(cb func(online bool)) (unsubscribe func()) {
	m.setMu.Lock()
	defer m.setMu.Unlock()

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs[id] = cb
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.invoke(id, cb, m.IsOnline())

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(id) })
	}
}

// Subscribers returns the number of active subscriptions.
func (m *Monitor) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Monitor) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return
	}
	delete(m.subs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Monitor) notify(online bool) {
	m.mu.Lock()
	ids := make([]uint64, len(m.order))
	copy(ids, m.order)
	cbs := make([]func(bool), len(ids))
	for i, id := range ids {
		cbs[i] = m.subs[id]
	}
	m.mu.Unlock()

	for i, cb := range cbs {
		m.invoke(ids[i], cb, online)
	}
}

// invoke runs one callback, isolating panics so later subscribers still run.
func (m *Monitor) invoke(id uint64, cb func(bool), online bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("network status subscriber panicked",
				zap.Uint64("subscription", id),
				zap.Any("panic", r),
			)
		}
	}()
	cb(online)
}

// IsNetworkError reports whether v looks like a connectivity failure. Any
// error counts while the monitor reports offline.
func (m *Monitor) IsNetworkError(v any) bool {
	c := apierr.CauseOf(v)
	if !c.Present() {
		return false
	}
	if !m.IsOnline() {
		return true
	}
	msg := strings.ToLower(c.Message)
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
