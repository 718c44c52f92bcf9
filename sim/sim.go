// Package sim drives a pool of simulated workers with concurrent clients.
//
// Each client repeatedly acquires a worker, holds it for a jittered hold
// time, and releases it. With reuse on pressure enabled, clients notice when
// their worker was reassigned mid-job and count the job as stale instead of
// releasing a worker they no longer own.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/superfly/rpool/config"
	"github.com/superfly/rpool/metrics"
	"github.com/superfly/rpool/pool"
	"github.com/superfly/rpool/registry"
)

// Worker is a simulated pooled resource.
type Worker struct {
	ID int64

	jobs   atomic.Int64
	holder atomic.Int64
}

// Jobs returns the number of jobs the worker has run.
func (w *Worker) Jobs() int64 {
	return w.jobs.Load()
}

// Counters are client-side outcomes of the simulation.
type Counters struct {
	Jobs     int64 `json:"jobs"`
	Timeouts int64 `json:"timeouts"`
	Stale    int64 `json:"stale"`
}

// Sim is a running simulation.
type Sim struct {
	cfg  config.Config
	log  *zap.Logger
	pool pool.Pool[*Worker]
	prom *prometheus.Registry

	closed   atomic.Bool
	nextID   atomic.Int64
	jobs     atomic.Int64
	timeouts atomic.Int64
	stale    atomic.Int64
}

// New builds the simulated pool described by cfg, registering it in reg
// under the pool's name, and registers its metrics.
//
// If reg already holds a worker pool under that name, the Sim drives that
// pool as is: its factory keeps producing workers for the Sim that created
// it, and it is not warmed again.
func New(cfg config.Config, log *zap.Logger, reg *registry.Registry) (*Sim, error) {
	s := &Sim{
		cfg:  cfg,
		log:  log,
		prom: prometheus.NewRegistry(),
	}

	p, err := registry.GetOrCreate(reg, cfg.Pool.Name, func() (*pool.ResourcePool[*Worker], error) {
		p := pool.New(s.newWorker, cfg.Pool.PoolOpts(log)...)
		p.SetDisposer(func(w *Worker) {
			log.Debug("sim: stopping worker", zap.Int64("worker", w.ID), zap.Int64("jobs", w.Jobs()))
		})
		if cfg.Pool.Warm > 0 {
			n := p.Warm(cfg.Pool.Warm)
			log.Info("sim: warmed pool", zap.Int("workers", n))
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sim: pool %s: %w", cfg.Pool.Name, err)
	}
	s.pool = p

	if err := s.prom.Register(metrics.NewCollector(s.pool)); err != nil {
		return nil, fmt.Errorf("sim: register metrics: %w", err)
	}
	return s, nil
}

func (s *Sim) newWorker() *Worker {
	w := &Worker{ID: s.nextID.Add(1)}
	s.log.Debug("sim: starting worker", zap.Int64("worker", w.ID))
	return w
}

// Pool returns the simulated pool.
func (s *Sim) Pool() pool.Pool[*Worker] {
	return s.pool
}

// Registry returns the Prometheus registry holding the pool's metrics.
func (s *Sim) Registry() *prometheus.Registry {
	return s.prom
}

// Counters returns the client-side outcomes so far.
func (s *Sim) Counters() Counters {
	return Counters{
		Jobs:     s.jobs.Load(),
		Timeouts: s.timeouts.Load(),
		Stale:    s.stale.Load(),
	}
}

// Run runs the clients until ctx is done or the pool is closed. It returns
// pool.ErrPoolClosed if the pool was closed while ctx was still live.
func (s *Sim) Run(ctx context.Context) error {
	s.log.Info("sim: starting", zap.Int("clients", s.cfg.Clients))

	var wg sync.WaitGroup
	for i := 1; i <= s.cfg.Clients; i++ {
		wg.Add(1)
		go func(client int64) {
			defer wg.Done()
			s.client(ctx, client)
		}(int64(i))
	}
	wg.Wait()

	s.log.Info("sim: stopped", zap.Any("counters", s.Counters()))
	if s.closed.Load() {
		return pool.ErrPoolClosed
	}
	return nil
}

func (s *Sim) client(ctx context.Context, id int64) {
	for ctx.Err() == nil {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.WaitTimeout)
		w, err := s.pool.AcquireWait(wctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, pool.ErrPoolClosed) {
				s.closed.Store(true)
				return
			}
			s.timeouts.Add(1)
			s.log.Debug("sim: acquire timed out", zap.Int64("client", id), zap.Error(err))
			continue
		}

		if s.work(ctx, id, w) {
			s.pool.Release(w)
		}
	}
}

// work runs one job on w. It returns false if w was reassigned to another
// client during the job, in which case the caller no longer owns it.
func (s *Sim) work(ctx context.Context, client int64, w *Worker) bool {
	w.holder.Store(client)
	sleepWithContext(ctx, s.holdTime())

	if w.holder.Load() != client {
		s.stale.Add(1)
		s.log.Debug("sim: worker reassigned mid-job", zap.Int64("client", client), zap.Int64("worker", w.ID))
		return false
	}
	w.jobs.Add(1)
	s.jobs.Add(1)
	return true
}

// holdTime returns the configured hold time with +/-50% jitter.
func (s *Sim) holdTime() time.Duration {
	hold := s.cfg.HoldTime
	if hold <= 0 {
		return 0
	}
	return hold/2 + rand.N(hold)
}

func sleepWithContext(ctx context.Context, dt time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(dt):
	}
}
