// Package registry holds named pools for the lifetime of a process.
//
// A Registry is an explicit value: create it at startup, pass it to the
// components that need shared pools, and Close it at shutdown. Pools are
// created lazily on first lookup, under the registry's lock, so concurrent
// callers asking for the same name get the same pool.
package registry

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	ErrClosed       = errors.New("registry: registry is closed")
	ErrTypeMismatch = errors.New("registry: entry has a different type")
)

// Registry maps names to closable entries, typically *pool.ResourcePool.
type Registry struct {
	log *zap.Logger

	mu      sync.Mutex
	closed  bool
	entries map[string]io.Closer
}

// New returns an empty registry. A nil log discards registry logs.
func New(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:     log,
		entries: make(map[string]io.Closer),
	}
}

// GetOrCreate returns the entry registered under name, calling create to
// make it if there is none. It fails with ErrTypeMismatch if the existing
// entry is not a P.
func GetOrCreate[P io.Closer](r *Registry, name string, create func() (P, error)) (P, error) {
	var zero P

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return zero, ErrClosed
	}

	if e, ok := r.entries[name]; ok {
		p, ok := e.(P)
		if !ok {
			return zero, fmt.Errorf("%s is %T: %w", name, e, ErrTypeMismatch)
		}
		return p, nil
	}

	p, err := create()
	if err != nil {
		return zero, fmt.Errorf("registry: create %s: %w", name, err)
	}
	r.entries[name] = p
	r.log.Info("registry: created", zap.String("name", name))
	return p, nil
}

// Lookup returns the entry registered under name, if it exists and is a P.
func Lookup[P io.Closer](r *Registry, name string) (P, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.entries[name].(P)
	return p, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := lo.Keys(r.entries)
	slices.Sort(names)
	return names
}

// Remove closes and forgets the entry registered under name.
// Removing an unknown name does nothing.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	e, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	if err := e.Close(); err != nil {
		return fmt.Errorf("registry: close %s: %w", name, err)
	}
	return nil
}

// Close closes every entry and makes the registry refuse new ones.
// Entries are closed after the registry's lock is released, so their
// cleanup may use the registry. Close keeps going past failures and
// returns all of them joined.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]io.Closer)
	r.mu.Unlock()

	names := lo.Keys(entries)
	slices.Sort(names)

	var err error
	for _, name := range names {
		if cerr := entries[name].Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("registry: close %s: %w", name, cerr))
		}
	}
	r.log.Info("registry: closed", zap.Int("entries", len(names)))
	return err
}
