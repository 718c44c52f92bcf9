// Package stats summarizes streams of durations.
package stats

import (
	"math"
	"sync"
	"time"
)

// Collector incrementally collects count, min, max, mean and variance
// of the values passed to Add, using Welford's algorithm.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
type Collector struct {
	mu        sync.Mutex
	count     float64
	min       float64
	max       float64
	avg       float64
	meanDist2 float64
	total     float64
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{
		min: math.Inf(1),
		max: math.Inf(-1),
	}
}

// Add accumulates x into the collected statistics.
func (p *Collector) Add(x float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count += 1.0
	p.total += x
	if x < p.min {
		p.min = x
	}
	if x > p.max {
		p.max = x
	}
	delta := x - p.avg
	p.avg += delta / p.count
	delta2 := x - p.avg
	p.meanDist2 += delta * delta2
}

// AddDuration accumulates d, in seconds.
func (p *Collector) AddDuration(d time.Duration) {
	p.Add(d.Seconds())
}

// Stats is a summary of collected values.
// An empty collector summarizes to all zeros so the result is always
// JSON-encodable.
type Stats struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"stddev"`
}

// Stats returns a summary of the values collected so far.
func (p *Collector) Stats() *Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count == 0 {
		return &Stats{}
	}

	v := p.meanDist2 / p.count
	return &Stats{
		Count:  int(p.count),
		Total:  p.total,
		Min:    p.min,
		Max:    p.max,
		Avg:    p.avg,
		Var:    v,
		StdDev: math.Sqrt(v),
	}
}
