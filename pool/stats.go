package pool

import (
	"github.com/superfly/rpool/stats"
)

// Stats is a snapshot of a pool's state and lifetime counters.
type Stats struct {
	Name        string `json:"name"`
	Active      int    `json:"active"`
	Available   int    `json:"available"`
	MaxCapacity int    `json:"max_capacity"`
	Closed      bool   `json:"closed"`

	Acquired        int64 `json:"acquired"`
	Hits            int64 `json:"hits"`
	Created         int64 `json:"created"`
	Steals          int64 `json:"steals"`
	Exhausted       int64 `json:"exhausted"`
	Throttled       int64 `json:"throttled"`
	Released        int64 `json:"released"`
	ForeignReleases int64 `json:"foreign_releases"`

	// HoldTime summarizes, in seconds, how long resources stayed active
	// before being released or reassigned.
	HoldTime *stats.Stats `json:"hold_time"`
	// WaitTime summarizes, in seconds, how long AcquireWait calls blocked.
	WaitTime *stats.Stats `json:"wait_time"`
}

// Unbounded reports whether the pool has no capacity limit.
func (s Stats) Unbounded() bool {
	return s.MaxCapacity == Unbounded
}

// Stats returns a snapshot of the pool's state and counters.
func (p *ResourcePool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.counters
	return Stats{
		Name:        p.name,
		Active:      len(p.active),
		Available:   p.available.Length(),
		MaxCapacity: p.maxCapacity,
		Closed:      p.closed,

		Acquired:        c.acquired,
		Hits:            c.hits,
		Created:         c.created,
		Steals:          c.steals,
		Exhausted:       c.exhausted,
		Throttled:       c.throttled,
		Released:        c.released,
		ForeignReleases: c.foreignReleases,

		HoldTime: p.holdTime.Stats(),
		WaitTime: p.waitTime.Stats(),
	}
}
