// Package monitoring snapshots client health (connectivity, offline queue
// backlog, upstream circuit breakers) and raises alerts when it degrades.
package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hirely/hirely-cli/internal/model"
	"github.com/hirely/hirely-cli/internal/resilience"
)

// Snapshot holds a point-in-time view of client health.
type Snapshot struct {
	Online       bool       `json:"online"`
	OfflineSince *time.Time `json:"offline_since,omitempty"`

	// Offline queue.
	QueueDepth     int        `json:"queue_depth"`
	QueueRetrying  int        `json:"queue_retrying"`
	OldestQueuedAt *time.Time `json:"oldest_queued_at,omitempty"`

	// Circuit breakers keyed by upstream name.
	Breakers     map[string]string `json:"breakers"`
	OpenBreakers []string          `json:"open_breakers,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// OfflineFor reports how long the client has been offline at collection time.
func (s *Snapshot) OfflineFor() time.Duration {
	if s.Online || s.OfflineSince == nil {
		return 0
	}
	return s.CollectedAt.Sub(*s.OfflineSince)
}

// QueueAge reports the age of the oldest queued request.
func (s *Snapshot) QueueAge() time.Duration {
	if s.OldestQueuedAt == nil {
		return 0
	}
	return s.CollectedAt.Sub(*s.OldestQueuedAt)
}

// QueueInspector lists pending offline requests.
type QueueInspector interface {
	Items(ctx context.Context) []model.QueuedRequest
}

// Connectivity reports the current network state.
type Connectivity interface {
	IsOnline() bool
}

// BreakerRegistry reports circuit breaker states.
type BreakerRegistry interface {
	States() map[string]resilience.CircuitState
}

// Collector gathers snapshots. Any of its inputs may be nil.
type Collector struct {
	queue    QueueInspector
	net      Connectivity
	breakers BreakerRegistry
	now      func() time.Time

	mu           sync.Mutex
	offlineSince time.Time
}

// NewCollector creates a new health collector.
func NewCollector(q QueueInspector, net Connectivity, breakers BreakerRegistry) *Collector {
	return &Collector{queue: q, net: net, breakers: breakers, now: time.Now}
}

// Collect gathers a snapshot. The offline duration is measured from the
// first collection that observed the client offline.
func (c *Collector) Collect(ctx context.Context) *Snapshot {
	now := c.now().UTC()
	snap := &Snapshot{
		Online:      true,
		Breakers:    map[string]string{},
		CollectedAt: now,
	}

	if c.net != nil {
		snap.Online = c.net.IsOnline()
	}
	c.mu.Lock()
	switch {
	case snap.Online:
		c.offlineSince = time.Time{}
	case c.offlineSince.IsZero():
		c.offlineSince = now
	}
	if !c.offlineSince.IsZero() {
		since := c.offlineSince
		snap.OfflineSince = &since
	}
	c.mu.Unlock()

	if c.queue != nil {
		items := c.queue.Items(ctx)
		snap.QueueDepth = len(items)
		var oldest int64
		for _, it := range items {
			if it.RetryCount > 0 {
				snap.QueueRetrying++
			}
			if oldest == 0 || it.Timestamp < oldest {
				oldest = it.Timestamp
			}
		}
		if oldest > 0 {
			t := time.UnixMilli(oldest).UTC()
			snap.OldestQueuedAt = &t
		}
	}

	if c.breakers != nil {
		for name, state := range c.breakers.States() {
			snap.Breakers[name] = state.String()
			if state == resilience.CircuitOpen {
				snap.OpenBreakers = append(snap.OpenBreakers, name)
			}
		}
		sort.Strings(snap.OpenBreakers)
	}

	return snap
}
