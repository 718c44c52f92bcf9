// Package config loads poolsim settings.
//
// Settings start from Default, are overlaid by an optional YAML file and
// then by POOLSIM_* environment variables:
//
//	POOLSIM_ADDR=:8000
//	POOLSIM_CLIENTS=8
//	POOLSIM_POOL_MAX_CAPACITY=2
//	POOLSIM_POOL_REUSE_ON_PRESSURE=true
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/superfly/rpool/logger"
	"github.com/superfly/rpool/pool"
)

const envPrefix = "POOLSIM_"

// PoolConfig describes the simulated pool.
type PoolConfig struct {
	Name            string `env:"NAME" yaml:"name"`
	InitialCapacity int    `env:"INITIAL_CAPACITY" yaml:"initial_capacity"`
	// MaxCapacity bounds active resources. Negative means unbounded.
	MaxCapacity     int     `env:"MAX_CAPACITY" yaml:"max_capacity"`
	ReuseOnPressure bool    `env:"REUSE_ON_PRESSURE" yaml:"reuse_on_pressure"`
	CreateRate      float64 `env:"CREATE_RATE" yaml:"create_rate"` // per second, 0 is unlimited
	CreateBurst     int     `env:"CREATE_BURST" yaml:"create_burst"`
	Warm            int     `env:"WARM" yaml:"warm"`
}

// Config is the full poolsim configuration.
type Config struct {
	Addr        string        `env:"ADDR" yaml:"addr"`
	Clients     int           `env:"CLIENTS" yaml:"clients"`
	HoldTime    time.Duration `env:"HOLD_TIME" yaml:"hold_time"`
	WaitTimeout time.Duration `env:"WAIT_TIMEOUT" yaml:"wait_timeout"`
	// Duration stops the simulation after this long. Zero runs until interrupted.
	Duration time.Duration `env:"DURATION" yaml:"duration"`

	Pool PoolConfig    `envPrefix:"POOL_" yaml:"pool"`
	Log  logger.Config `yaml:"log"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:        ":8000",
		Clients:     4,
		HoldTime:    100 * time.Millisecond,
		WaitTimeout: time.Second,
		Pool: PoolConfig{
			Name:        "workers",
			MaxCapacity: 2,
			CreateBurst: 1,
		},
		Log: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load returns Default overlaid by the YAML file at path (if path is not
// empty) and then by environment variables. A nil environ reads the
// process environment.
func Load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	opts := env.Options{Prefix: envPrefix, Environment: environ}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings that have no meaningful interpretation.
func (c Config) Validate() error {
	var err error
	if c.Clients < 1 {
		err = errors.Join(err, fmt.Errorf("clients must be at least 1, got %d", c.Clients))
	}
	if c.HoldTime < 0 {
		err = errors.Join(err, fmt.Errorf("hold_time must not be negative"))
	}
	if c.WaitTimeout <= 0 {
		err = errors.Join(err, fmt.Errorf("wait_timeout must be positive"))
	}
	if c.Pool.CreateRate < 0 {
		err = errors.Join(err, fmt.Errorf("pool.create_rate must not be negative"))
	}
	if c.Pool.CreateRate > 0 && c.Pool.CreateBurst < 1 {
		err = errors.Join(err, fmt.Errorf("pool.create_burst must be at least 1 with a create_rate"))
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PoolOpts converts the pool settings into pool options.
func (c PoolConfig) PoolOpts(log *zap.Logger) []pool.Opt {
	opts := []pool.Opt{
		pool.Name(c.Name),
		pool.InitialCapacity(c.InitialCapacity),
		pool.Logger(log),
	}
	if c.MaxCapacity >= 0 {
		opts = append(opts, pool.MaxCapacity(c.MaxCapacity))
	}
	if c.ReuseOnPressure {
		opts = append(opts, pool.ReuseOnPressure())
	}
	if c.CreateRate > 0 {
		opts = append(opts, pool.CreateLimit(rate.Limit(c.CreateRate), c.CreateBurst))
	}
	return opts
}
