package pool

import (
	"context"
	"errors"
)

// ErrPoolClosed is returned by AcquireWait once the pool has been disposed.
var ErrPoolClosed = errors.New("pool: pool is closed")

// Pool is a bounded pool of resources of type T.
type Pool[T any] interface {
	Stats() Stats
	Acquire() (T, bool)
	AcquireWait(ctx context.Context) (T, error)
	Release(T)
	Empty(cleanup func(T))
	Dispose(cleanup func(T))
	ActiveCount() int
	AvailableCount() int
	Close() error
}

var _ Pool[*struct{}] = (*ResourcePool[*struct{}])(nil)
