package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/pulse/internal/cli"
	"horse.fit/pulse/internal/config"
	"horse.fit/pulse/internal/db"
	"horse.fit/pulse/internal/logging"
)

const dbConnectTimeout = 10 * time.Second

// runtime bundles what every database-backed command needs.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
}

func (r *runtime) close() {
	if r != nil && r.pool != nil {
		_ = r.pool.Close()
	}
}

// initRuntime loads env, config, logger, and (optionally) the database
// pool. On failure it prints to stderr and returns a non-zero exit
// code.
func initRuntime(envLoader *cli.EnvLoader, withDB bool) (*runtime, int) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, 1
	}

	rt := &runtime{cfg: cfg, logger: logger}
	if !withDB {
		return rt, 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbConnectTimeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, 1
	}
	rt.pool = pool
	return rt, 0
}
