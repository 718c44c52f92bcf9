// Package metrics exports pool statistics to Prometheus.
//
// A Collector reads a fresh pool.Stats snapshot on every scrape, so it
// never goes stale and needs no update loop:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector(p))
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/superfly/rpool/pool"
)

const namespace = "rpool"

// Source is anything that can report pool statistics.
type Source interface {
	Stats() pool.Stats
}

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(pool.Stats) float64
}

// Collector is a prometheus.Collector for one pool.
type Collector struct {
	src     Source
	metrics []metric
}

var _ prometheus.Collector = (*Collector)(nil)

func newMetric(name, help string, kind prometheus.ValueType, labels prometheus.Labels, value func(pool.Stats) float64) metric {
	return metric{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels),
		kind:  kind,
		value: value,
	}
}

// NewCollector returns a collector for src, labelled with the pool's name.
func NewCollector(src Source) *Collector {
	labels := prometheus.Labels{"pool": src.Stats().Name}
	gauge := func(n, help string, v func(pool.Stats) float64) metric {
		return newMetric(n, help, prometheus.GaugeValue, labels, v)
	}
	counter := func(n, help string, v func(pool.Stats) int64) metric {
		return newMetric(n, help, prometheus.CounterValue, labels, func(s pool.Stats) float64 { return float64(v(s)) })
	}

	return &Collector{
		src: src,
		metrics: []metric{
			gauge("active", "Resources currently checked out", func(s pool.Stats) float64 { return float64(s.Active) }),
			gauge("available", "Resources ready to be handed out", func(s pool.Stats) float64 { return float64(s.Available) }),
			gauge("max_capacity", "Maximum concurrently active resources", func(s pool.Stats) float64 {
				if s.Unbounded() {
					return math.Inf(1)
				}
				return float64(s.MaxCapacity)
			}),
			gauge("hold_seconds_avg", "Average time a resource stays checked out", func(s pool.Stats) float64 { return s.HoldTime.Avg }),
			counter("acquired_total", "Successful acquires", func(s pool.Stats) int64 { return s.Acquired }),
			counter("hits_total", "Acquires served from available resources", func(s pool.Stats) int64 { return s.Hits }),
			counter("created_total", "Resources produced by the factory", func(s pool.Stats) int64 { return s.Created }),
			counter("steals_total", "Active resources reassigned under pressure", func(s pool.Stats) int64 { return s.Steals }),
			counter("exhausted_total", "Acquires that found no resource", func(s pool.Stats) int64 { return s.Exhausted }),
			counter("throttled_total", "Resource creations denied by the create limit", func(s pool.Stats) int64 { return s.Throttled }),
			counter("released_total", "Resources returned to the pool", func(s pool.Stats) int64 { return s.Released }),
			counter("foreign_releases_total", "Releases of resources that were not active", func(s pool.Stats) int64 { return s.ForeignReleases }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(st))
	}
}
