package pool

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"golang.org/x/time/rate"
)

type res struct {
	id int
}

// counter returns a factory producing resources with ids 1, 2, 3, ...
func counter() func() *res {
	n := 0
	return func() *res {
		n += 1
		return &res{id: n}
	}
}

// checkInvariants asserts that no resource is both available and active,
// and that the active count is within capacity.
func checkInvariants[T comparable](t *testing.T, p *ResourcePool[T]) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	assert.True(t, len(p.active) <= p.maxCapacity)
	seen := make(map[T]bool)
	for _, e := range p.active {
		seen[e.item] = true
	}
	for i := 0; i < p.available.Length(); i++ {
		item := p.available.Get(i).(T)
		assert.False(t, seen[item], "resource both available and active")
	}
}

func TestFactoryFallback(t *testing.T) {
	p := New(counter(), MaxCapacity(4))

	r, ok := p.Acquire()
	assert.True(t, ok)
	assert.Equal(t, 1, r.id)
	assert.Equal(t, 1, p.ActiveCount())
	assert.Equal(t, 0, p.AvailableCount())
}

func TestNoFactory(t *testing.T) {
	p := New[*res](nil)

	r, ok := p.Acquire()
	assert.False(t, ok)
	assert.Zero(t, r)
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, int64(1), p.Stats().Exhausted)
}

func TestFIFOReuse(t *testing.T) {
	p := New(counter())

	a, _ := p.Acquire()
	b, _ := p.Acquire()
	c, _ := p.Acquire()
	p.Release(a)
	p.Release(b)
	p.Release(c)
	assert.Equal(t, 3, p.AvailableCount())

	for _, want := range []*res{a, b, c} {
		got, ok := p.Acquire()
		assert.True(t, ok)
		assert.True(t, want == got)
	}
	assert.Equal(t, 0, p.AvailableCount())
	assert.Equal(t, int64(3), p.Stats().Created)
	assert.Equal(t, int64(3), p.Stats().Hits)
}

func TestExhaustionWithoutReuse(t *testing.T) {
	for _, factory := range []func() *res{counter(), nil} {
		p := New(factory, MaxCapacity(1))
		if factory == nil {
			p.Release(&res{}) // foreign, ignored
			p.mu.Lock()
			p.available.Add(&res{id: 7})
			p.mu.Unlock()
		}

		_, ok := p.Acquire()
		assert.True(t, ok)

		r, ok := p.Acquire()
		assert.False(t, ok)
		assert.Zero(t, r)
		assert.Equal(t, 1, p.ActiveCount())
	}
}

func TestStealUnderPressure(t *testing.T) {
	p := New(counter(), MaxCapacity(1), ReuseOnPressure())
	assert.True(t, p.ReusesOnPressure())

	x, ok := p.Acquire()
	assert.True(t, ok)

	y, ok := p.Acquire()
	assert.True(t, ok)
	assert.True(t, x == y)
	assert.Equal(t, 1, p.ActiveCount())
	assert.Equal(t, int64(1), p.Stats().Steals)
	assert.Equal(t, int64(1), p.Stats().Created)
}

func TestStealTakesOldest(t *testing.T) {
	p := New(counter(), MaxCapacity(3), ReuseOnPressure())

	a, _ := p.Acquire()
	b, _ := p.Acquire()
	c, _ := p.Acquire()

	got, ok := p.Acquire()
	assert.True(t, ok)
	assert.True(t, got == a)

	// a moved to the back, so b is now the oldest.
	got, ok = p.Acquire()
	assert.True(t, ok)
	assert.True(t, got == b)

	p.Release(c)
	got, ok = p.Acquire()
	assert.True(t, ok)
	assert.True(t, got == c)
	assert.Equal(t, 3, p.ActiveCount())
}

func TestStealZeroCapacity(t *testing.T) {
	p := New(counter(), MaxCapacity(0), ReuseOnPressure())

	_, ok := p.Acquire()
	assert.False(t, ok)
	_, ok = p.AcquireOrSteal()
	assert.False(t, ok)
	assert.Equal(t, 0, p.ActiveCount())
}

func TestAcquireOrSteal(t *testing.T) {
	p := New(counter(), MaxCapacity(1))
	assert.False(t, p.ReusesOnPressure())

	x, _ := p.Acquire()
	_, ok := p.Acquire()
	assert.False(t, ok)

	y, ok := p.AcquireOrSteal()
	assert.True(t, ok)
	assert.True(t, x == y)
	assert.Equal(t, 1, p.ActiveCount())
}

func TestSetReuseOnPressure(t *testing.T) {
	p := New(counter(), MaxCapacity(1))
	x, _ := p.Acquire()

	p.SetReuseOnPressure(true)
	y, ok := p.Acquire()
	assert.True(t, ok)
	assert.True(t, x == y)

	p.SetReuseOnPressure(false)
	_, ok = p.Acquire()
	assert.False(t, ok)
}

func TestReleaseReacquire(t *testing.T) {
	p := New(counter())

	x, _ := p.Acquire()
	p.Release(x)
	assert.Equal(t, 1, p.AvailableCount())
	assert.Equal(t, 0, p.ActiveCount())

	y, ok := p.Acquire()
	assert.True(t, ok)
	assert.True(t, x == y)
	assert.Equal(t, 0, p.AvailableCount())
	assert.Equal(t, 1, p.ActiveCount())
}

func TestReleaseMisuse(t *testing.T) {
	p := New(counter(), MaxCapacity(2))

	x, _ := p.Acquire()
	p.Release(x)
	p.Release(x)
	p.Release(&res{id: 99})

	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, 1, p.AvailableCount())
	assert.Equal(t, int64(1), p.Stats().Released)
	assert.Equal(t, int64(2), p.Stats().ForeignReleases)
	checkInvariants(t, p)
}

func TestEmptyResets(t *testing.T) {
	p := New(counter(), MaxCapacity(2))

	a, _ := p.Acquire()
	p.Acquire()
	p.Release(a)

	p.Empty(nil)
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, 0, p.AvailableCount())

	// behaves like a fresh pool with the same factory and capacity.
	r, ok := p.Acquire()
	assert.True(t, ok)
	assert.Equal(t, 3, r.id)
	p.Acquire()
	_, ok = p.Acquire()
	assert.False(t, ok)
}

func TestScenario(t *testing.T) {
	n := 0
	p := New(func() int {
		n += 1
		return n
	}, MaxCapacity(2))

	acquire := func() (int, bool) {
		r, ok := p.Acquire()
		checkInvariants(t, p)
		return r, ok
	}

	r, ok := acquire()
	assert.True(t, ok)
	assert.Equal(t, 1, r)

	r, ok = acquire()
	assert.True(t, ok)
	assert.Equal(t, 2, r)

	_, ok = acquire()
	assert.False(t, ok)

	p.Release(1)

	r, ok = acquire()
	assert.True(t, ok)
	assert.Equal(t, 1, r)

	_, ok = acquire()
	assert.False(t, ok)
	assert.Equal(t, 2, p.ActiveCount())
	assert.Equal(t, 0, p.AvailableCount())
	assert.Equal(t, 2, n)
}

func TestMaxCapacityOptions(t *testing.T) {
	assert.Equal(t, Unbounded, New[*res](nil).MaxCapacity())
	assert.Equal(t, 0, New[*res](nil, MaxCapacity(-3)).MaxCapacity())
	assert.Equal(t, 5, New[*res](nil, MaxCapacity(5), InitialCapacity(5)).MaxCapacity())
	assert.True(t, New[*res](nil).Stats().Unbounded())
}

func TestSetFactory(t *testing.T) {
	p := New[*res](nil)
	_, ok := p.Acquire()
	assert.False(t, ok)

	p.SetFactory(counter())
	r, ok := p.Acquire()
	assert.True(t, ok)
	assert.Equal(t, 1, r.id)

	p.SetFactory(nil)
	_, ok = p.Acquire()
	assert.False(t, ok)
}

func TestCreateLimit(t *testing.T) {
	p := New(counter(), CreateLimit(rate.Every(time.Hour), 1))

	x, ok := p.Acquire()
	assert.True(t, ok)

	_, ok = p.Acquire()
	assert.False(t, ok)
	assert.Equal(t, int64(1), p.Stats().Throttled)

	// released resources are still handed out while throttled.
	p.Release(x)
	y, ok := p.Acquire()
	assert.True(t, ok)
	assert.True(t, x == y)
}

func TestCreateLimitZeroBurst(t *testing.T) {
	p := New(counter(), CreateLimit(rate.Every(time.Hour), 0))

	_, ok := p.Acquire()
	assert.True(t, ok)
	_, ok = p.Acquire()
	assert.False(t, ok)

	p = New(counter(), CreateLimit(rate.Every(time.Hour), 0))
	r, err := p.AcquireWait(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, r.id)
}

func TestHoldTime(t *testing.T) {
	now := time.Unix(1000, 0)
	p := New(counter(), Clock(func() time.Time { return now }), MaxCapacity(1), ReuseOnPressure())

	x, _ := p.Acquire()
	now = now.Add(2 * time.Second)
	p.Release(x)

	p.Acquire()
	now = now.Add(4 * time.Second)
	p.Acquire() // steal ends the previous hold

	st := p.Stats().HoldTime
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 2.0, st.Min)
	assert.Equal(t, 4.0, st.Max)
	assert.Equal(t, 3.0, st.Avg)
}

func TestRandomOpsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, reuse := range []bool{false, true} {
		opts := []Opt{MaxCapacity(5)}
		if reuse {
			opts = append(opts, ReuseOnPressure())
		}
		p := New(counter(), opts...)

		var held []*res
		for i := 0; i < 2000; i++ {
			switch op := rng.Intn(10); {
			case op < 5:
				if r, ok := p.Acquire(); ok {
					held = append(held, r)
				}
			case op < 9:
				if len(held) > 0 {
					j := rng.Intn(len(held))
					p.Release(held[j])
					held = append(held[:j], held[j+1:]...)
				} else {
					p.Release(&res{id: -1})
				}
			default:
				p.Empty(nil)
				held = nil
			}
			checkInvariants(t, p)
		}

		st := p.Stats()
		assert.Equal(t, st.Active, p.ActiveCount())
		assert.True(t, st.Active <= 5)
	}
}
