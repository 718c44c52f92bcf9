package registry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/superfly/rpool/pool"
)

type conn struct{ id int }

type failCloser struct{}

func (failCloser) Close() error { return errors.New("boom") }

func newConnPool() (*pool.ResourcePool[*conn], error) {
	return pool.New(func() *conn { return &conn{} }, pool.MaxCapacity(2)), nil
}

func TestGetOrCreate(t *testing.T) {
	r := New(nil)
	defer r.Close()

	created := 0
	create := func() (*pool.ResourcePool[*conn], error) {
		created += 1
		return newConnPool()
	}

	p1, err := GetOrCreate(r, "conns", create)
	assert.NoError(t, err)
	p2, err := GetOrCreate(r, "conns", create)
	assert.NoError(t, err)
	assert.True(t, p1 == p2)
	assert.Equal(t, 1, created)

	p3, ok := Lookup[*pool.ResourcePool[*conn]](r, "conns")
	assert.True(t, ok)
	assert.True(t, p1 == p3)

	_, ok = Lookup[*pool.ResourcePool[*conn]](r, "missing")
	assert.False(t, ok)
}

func TestGetOrCreateConcurrent(t *testing.T) {
	r := New(nil)
	defer r.Close()

	var wg sync.WaitGroup
	pools := make([]*pool.ResourcePool[*conn], 8)
	for i := range pools {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := GetOrCreate(r, "conns", newConnPool)
			assert.NoError(t, err)
			pools[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range pools {
		assert.True(t, p == pools[0])
	}
}

func TestTypeMismatch(t *testing.T) {
	r := New(nil)
	defer r.Close()

	_, err := GetOrCreate(r, "conns", newConnPool)
	assert.NoError(t, err)

	_, err = GetOrCreate(r, "conns", func() (*pool.ResourcePool[int], error) {
		return pool.New[int](nil), nil
	})
	assert.IsError(t, err, ErrTypeMismatch)
}

func TestCreateError(t *testing.T) {
	r := New(nil)
	defer r.Close()

	boom := errors.New("boom")
	_, err := GetOrCreate(r, "conns", func() (*pool.ResourcePool[*conn], error) { return nil, boom })
	assert.IsError(t, err, boom)
	assert.Equal(t, 0, len(r.Names()))
}

func TestRemove(t *testing.T) {
	r := New(nil)
	defer r.Close()

	p, _ := GetOrCreate(r, "conns", newConnPool)
	assert.NoError(t, r.Remove("conns"))
	assert.True(t, p.Closed())
	assert.NoError(t, r.Remove("conns"))
	assert.Equal(t, 0, len(r.Names()))
}

func TestClose(t *testing.T) {
	r := New(nil)

	a, _ := GetOrCreate(r, "b", newConnPool)
	b, _ := GetOrCreate(r, "a", newConnPool)
	_, err := GetOrCreate(r, "bad", func() (failCloser, error) { return failCloser{}, nil })
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "bad"}, r.Names())

	err = r.Close()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "close bad")
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())

	_, err = GetOrCreate(r, "a", newConnPool)
	assert.IsError(t, err, ErrClosed)
	assert.NoError(t, r.Close())
}

func TestCloseDisposerUsesRegistry(t *testing.T) {
	r := New(nil)

	p, err := GetOrCreate(r, "conns", newConnPool)
	assert.NoError(t, err)
	p.Acquire()

	var seen []string
	p.SetDisposer(func(*conn) {
		seen = r.Names()
		_, ok := Lookup[*pool.ResourcePool[*conn]](r, "conns")
		assert.False(t, ok)
		assert.NoError(t, r.Remove("conns"))
	})

	done := make(chan error, 1)
	go func() { done <- r.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a disposer used the registry")
	}
	assert.Equal(t, 0, len(seen))
	assert.True(t, p.Closed())
}
