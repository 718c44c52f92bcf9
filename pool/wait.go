package pool

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AcquireWait is Acquire, but instead of reporting exhaustion it waits
// until a resource can be obtained. It returns ctx.Err() if ctx is done
// first and ErrPoolClosed if the pool is or becomes disposed.
// Creation throttled by CreateLimit waits for the limiter. A creation token
// obtained that way is kept for this call's next create attempt, and is only
// given up if the call is served from available resources instead.
func (p *ResourcePool[T]) AcquireWait(ctx context.Context) (T, error) {
	var zero T
	start := p.now()
	tokenHeld := false

	for {
		p.mu.Lock()
		item, out := p.take(p.reuseOnPressure, tokenHeld)
		wake := p.wake
		p.mu.Unlock()

		switch out {
		case outcomeOK:
			p.waitTime.AddDuration(p.now().Sub(start))
			return item, nil
		case outcomeClosed:
			p.log.Debug("pool: wait cancelled with closed pool")
			return zero, ErrPoolClosed
		case outcomeThrottled:
			if err := p.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return zero, ctx.Err()
				}
				return zero, fmt.Errorf("pool: create limit: %w", err)
			}
			tokenHeld = true
			continue
		}

		select {
		case <-ctx.Done():
			p.log.Debug("pool: wait cancelled context", zap.Error(ctx.Err()))
			return zero, ctx.Err()
		case <-wake:
			// try again...
		}
	}
}
