// Package pool implements a bounded pool of reusable resources.
//
// A ResourcePool tracks every resource it hands out in one of two
// collections: available resources wait in a FIFO queue, and active
// resources are kept in check-out order. The number of active resources
// never exceeds the pool's maximum capacity. When the pool is at capacity,
// Acquire either reports exhaustion or, if reuse on pressure is enabled,
// reassigns the oldest active resource to the new caller.
package pool

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/superfly/rpool/stats"
)

// Unbounded is the default maximum capacity.
const Unbounded = math.MaxInt

type options struct {
	name            string
	initialCapacity int
	maxCapacity     int
	reuseOnPressure bool
	log             *zap.Logger
	limiter         *rate.Limiter
	now             func() time.Time
}

// Opt configures a pool created by New.
type Opt func(*options)

// Name sets the label used for the pool in logs and metrics.
func Name(name string) Opt {
	return func(o *options) { o.name = name }
}

// InitialCapacity pre-sizes the pool's internal bookkeeping. It has no
// effect on behavior.
func InitialCapacity(n int) Opt {
	if n < 0 {
		n = 0
	}
	return func(o *options) { o.initialCapacity = n }
}

// MaxCapacity bounds the number of concurrently active resources.
func MaxCapacity(n int) Opt {
	if n < 0 {
		n = 0
	}
	return func(o *options) { o.maxCapacity = n }
}

// ReuseOnPressure makes Acquire reassign the oldest active resource when the
// pool is at capacity.
//
// This hands one resource to two callers. The earlier holder keeps a stale
// handle and must not use it after a newer Acquire may have taken it.
// Only enable this for resources whose callers tolerate that.
func ReuseOnPressure() Opt {
	return func(o *options) { o.reuseOnPressure = true }
}

// Logger sets the logger for pool events. The default discards them.
func Logger(log *zap.Logger) Opt {
	return func(o *options) { o.log = log }
}

// CreateLimit limits factory calls to r per second with bursts of up to
// burst. A burst below 1 is raised to 1.
func CreateLimit(r rate.Limit, burst int) Opt {
	if burst < 1 {
		burst = 1
	}
	return func(o *options) { o.limiter = rate.NewLimiter(r, burst) }
}

// Clock sets the time source used for hold and wait statistics.
func Clock(now func() time.Time) Opt {
	return func(o *options) { o.now = now }
}

type activeEntry[T comparable] struct {
	item  T
	since time.Time
}

type counters struct {
	acquired        int64
	hits            int64
	created         int64
	steals          int64
	exhausted       int64
	throttled       int64
	released        int64
	foreignReleases int64
}

// outcome is the result of a single non-blocking acquire attempt.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeExhausted
	outcomeThrottled
	outcomeClosed
)

// ResourcePool is a bounded pool of resources of type T.
// Resources are compared by identity, so T is normally a pointer type.
// All methods are safe for concurrent use.
type ResourcePool[T comparable] struct {
	name            string
	initialCapacity int
	log             *zap.Logger
	limiter         *rate.Limiter
	now             func() time.Time

	holdTime *stats.Collector
	waitTime *stats.Collector

	mu              sync.Mutex
	factory         func() T
	disposer        func(T)
	maxCapacity     int
	reuseOnPressure bool
	closed          bool
	available       *queue.Queue
	active          []activeEntry[T]
	counters        counters

	// wake is closed and replaced whenever a blocked AcquireWait might
	// be able to make progress.
	wake chan struct{}
}

// New creates a pool that produces resources with factory when none are
// available. A nil factory means the pool only hands out released resources.
func New[T comparable](factory func() T, opts ...Opt) *ResourcePool[T] {
	o := options{
		name:        "pool",
		maxCapacity: Unbounded,
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &ResourcePool[T]{
		name:            o.name,
		initialCapacity: o.initialCapacity,
		log:             o.log.With(zap.String("pool", o.name)),
		limiter:         o.limiter,
		now:             o.now,

		holdTime: stats.New(),
		waitTime: stats.New(),

		factory:         factory,
		maxCapacity:     o.maxCapacity,
		reuseOnPressure: o.reuseOnPressure,
		available:       queue.New(),
		active:          make([]activeEntry[T], 0, o.initialCapacity),
		wake:            make(chan struct{}),
	}
	return p
}

// Name returns the pool's label.
func (p *ResourcePool[T]) Name() string {
	return p.name
}

// SetFactory replaces the factory. A nil factory disables creation.
// It has no effect on a disposed pool.
func (p *ResourcePool[T]) SetFactory(factory func() T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.factory = factory
	p.broadcast()
}

// SetReuseOnPressure switches the steal policy described on ReuseOnPressure.
func (p *ResourcePool[T]) SetReuseOnPressure(reuse bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reuseOnPressure = reuse
	p.broadcast()
}

// ReusesOnPressure reports whether the steal policy is enabled.
func (p *ResourcePool[T]) ReusesOnPressure() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reuseOnPressure
}

// SetDisposer sets the cleanup hook Close passes to Dispose.
func (p *ResourcePool[T]) SetDisposer(cleanup func(T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disposer = cleanup
}

// Acquire removes a resource from the pool for the caller's exclusive use
// until it is passed to Release. It returns false if no resource could be
// obtained: the pool is at capacity without reuse on pressure, or there is
// nothing available and no factory (or the factory is throttled), or the
// pool has been disposed.
func (p *ResourcePool[T]) Acquire() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, out := p.take(p.reuseOnPressure, false)
	return item, out == outcomeOK
}

// AcquireOrSteal is Acquire with reuse on pressure forced on for this call.
// At capacity it hands out the oldest active resource, whose previous holder
// is left with a stale handle.
func (p *ResourcePool[T]) AcquireOrSteal() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, out := p.take(true, false)
	return item, out == outcomeOK
}

// take performs one non-blocking acquire attempt. tokenHeld is set when the
// caller already holds a creation token from the limiter.
// p.mu must be held.
func (p *ResourcePool[T]) take(steal bool, tokenHeld bool) (T, outcome) {
	var zero T
	if p.closed {
		return zero, outcomeClosed
	}

	if len(p.active) >= p.maxCapacity {
		if !steal || len(p.active) == 0 {
			p.counters.exhausted++
			p.log.Debug("pool: acquire at capacity", zap.Int("active", len(p.active)))
			return zero, outcomeExhausted
		}

		victim := p.active[0]
		p.active = slices.Delete(p.active, 0, 1)
		p.holdTime.AddDuration(p.now().Sub(victim.since))
		p.counters.steals++
		p.log.Warn("pool: reassigning oldest active resource", zap.Int("active", len(p.active)+1))
		return p.activate(victim.item), outcomeOK
	}

	if p.available.Length() > 0 {
		item := p.available.Remove().(T)
		p.counters.hits++
		return p.activate(item), outcomeOK
	}

	if p.factory == nil {
		p.counters.exhausted++
		p.log.Debug("pool: acquire with nothing available")
		return zero, outcomeExhausted
	}

	if p.limiter != nil && !tokenHeld && !p.limiter.Allow() {
		p.counters.throttled++
		p.log.Debug("pool: create throttled")
		return zero, outcomeThrottled
	}

	item := p.factory()
	p.counters.created++
	p.log.Debug("pool: created resource", zap.Int64("created", p.counters.created))
	return p.activate(item), outcomeOK
}

// activate appends item to the active list. p.mu must be held.
func (p *ResourcePool[T]) activate(item T) T {
	p.active = append(p.active, activeEntry[T]{item: item, since: p.now()})
	p.counters.acquired++
	return item
}

// Release returns item to the back of the available queue. Releasing an item
// that is not active (already released, never acquired from this pool, or
// released after Dispose) does nothing. The pool does not reset item.
func (p *ResourcePool[T]) Release(item T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, i, ok := lo.FindIndexOf(p.active, func(e activeEntry[T]) bool { return e.item == item })
	if !ok {
		p.counters.foreignReleases++
		p.log.Debug("pool: release of inactive resource ignored")
		return
	}

	entry := p.active[i]
	p.active = slices.Delete(p.active, i, i+1)
	p.available.Add(item)
	p.holdTime.AddDuration(p.now().Sub(entry.since))
	p.counters.released++
	p.broadcast()
}

// ActiveCount returns the number of resources currently checked out.
func (p *ResourcePool[T]) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// AvailableCount returns the number of resources ready to be handed out.
func (p *ResourcePool[T]) AvailableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available.Length()
}

// MaxCapacity returns the bound on active resources, Unbounded if none.
func (p *ResourcePool[T]) MaxCapacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxCapacity
}

// Closed reports whether Dispose has been called.
func (p *ResourcePool[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// broadcast wakes every blocked AcquireWait. p.mu must be held.
func (p *ResourcePool[T]) broadcast() {
	close(p.wake)
	p.wake = make(chan struct{})
}
