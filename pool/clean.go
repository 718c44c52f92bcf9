package pool

import (
	"go.uber.org/zap"
)

// detach removes every tracked resource from the pool and returns them,
// available ones first (front to back), then active ones (oldest first).
// p.mu must be held.
func (p *ResourcePool[T]) detach() []T {
	items := make([]T, 0, p.available.Length()+len(p.active))
	for p.available.Length() > 0 {
		items = append(items, p.available.Remove().(T))
	}
	for _, e := range p.active {
		items = append(items, e.item)
	}

	p.active = make([]activeEntry[T], 0, p.initialCapacity)
	p.broadcast()
	return items
}

func runCleanup[T any](items []T, cleanup func(T)) {
	if cleanup == nil {
		return
	}
	for _, item := range items {
		cleanup(item)
	}
}

// Empty drops every resource the pool tracks, both available and active.
// If cleanup is non-nil it is called once per dropped resource, after the
// pool's lock is released. The pool remains usable.
func (p *ResourcePool[T]) Empty(cleanup func(T)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	items := p.detach()
	p.mu.Unlock()

	p.log.Info("pool: empty", zap.Int("dropped", len(items)))
	runCleanup(items, cleanup)
}

// Dispose empties the pool like Empty and drops the factory.
// Afterwards Acquire reports no resource, AcquireWait returns ErrPoolClosed,
// and Release, Empty, Warm and Dispose do nothing.
func (p *ResourcePool[T]) Dispose(cleanup func(T)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.factory = nil
	items := p.detach()
	p.mu.Unlock()

	p.log.Info("pool: dispose", zap.Int("dropped", len(items)))
	runCleanup(items, cleanup)
}

// Close disposes the pool with the hook set by SetDisposer.
func (p *ResourcePool[T]) Close() error {
	p.mu.Lock()
	cleanup := p.disposer
	p.mu.Unlock()

	p.Dispose(cleanup)
	return nil
}

// Warm adds up to n factory-made resources to the available queue and
// returns how many were added. It stops early if creation is throttled.
func (p *ResourcePool[T]) Warm(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.factory == nil {
		return 0
	}

	added := 0
	for added < n {
		if p.limiter != nil && !p.limiter.Allow() {
			p.counters.throttled++
			break
		}
		p.available.Add(p.factory())
		p.counters.created++
		added++
	}

	if added > 0 {
		p.broadcast()
	}
	p.log.Debug("pool: warm", zap.Int("added", added), zap.Int("available", p.available.Length()))
	return added
}
