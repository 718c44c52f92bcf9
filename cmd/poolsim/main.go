package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/superfly/rpool/config"
	"github.com/superfly/rpool/logger"
	"github.com/superfly/rpool/registry"
	"github.com/superfly/rpool/sim"
)

func main() {
	// Get settings from an optional file and env.
	cfg, err := config.Load(os.Getenv("POOLSIM_CONFIG"), nil)
	if err != nil {
		log.Fatalf("config.Load: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger.New: %v", err)
	}
	defer lg.Sync()

	lg.Info("starting poolsim",
		zap.String("addr", cfg.Addr),
		zap.String("pool", cfg.Pool.Name),
		zap.Int("max_capacity", cfg.Pool.MaxCapacity),
		zap.Bool("reuse_on_pressure", cfg.Pool.ReuseOnPressure))

	ctx := context.Background()
	if cfg.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cfg.Duration)
		defer stop()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := registry.New(lg)
	defer func() {
		if err := reg.Close(); err != nil {
			lg.Error("registry.Close", zap.Error(err))
		}
	}()

	s, err := sim.New(cfg, lg, reg)
	if err != nil {
		lg.Fatal("sim.New", zap.Error(err))
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	srv := sim.NewServer(s, cfg.Addr)
	if err := sim.RunWithSignals(ctx, srv, time.Second); err != nil {
		lg.Error("RunWithSignals", zap.Error(err))
	}

	cancel()
	if err := <-done; err != nil {
		lg.Fatal("sim.Run", zap.Error(err))
	}
	lg.Info("poolsim stopped", zap.Any("stats", s.Pool().Stats()))
}
