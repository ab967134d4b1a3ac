package driver

import (
	"log/slog"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-state/shutdown"
	"github.com/caarlos0/env/v11"
)

const defaultWorkerCount = 10

type poolConfig struct {
	Workers int `env:"DRIVER_WORKER_COUNT" envDefault:"10"`
}

// defaultPool runs effects for reactors that were not given a pool of their own. It is
// created on first use and stopped by the shutdown hooks.
var defaultPool = sync.OnceValue(func() pond.Pool { //nolint:gochecknoglobals
	var cfg poolConfig

	if err := env.Parse(&cfg); err != nil || cfg.Workers <= 0 {
		slog.Warn("Invalid DRIVER_WORKER_COUNT, using default", "error", err, "default", defaultWorkerCount)

		cfg.Workers = defaultWorkerCount
	}

	slog.Debug("Initializing driver worker pool", "count", cfg.Workers)

	pool := pond.NewPool(cfg.Workers)

	shutdown.BeforeShutdown(func() {
		slog.Debug("Stopping driver worker pool")
		pool.StopAndWait()
		slog.Debug("Driver worker pool stopped")
	})

	return pool
})

// DefaultPool returns the shared worker pool.
func DefaultPool() pond.Pool { //nolint:ireturn
	return defaultPool()
}
