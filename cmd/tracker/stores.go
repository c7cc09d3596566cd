package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/learning-tracker/config"
	"github.com/alem-hub/learning-tracker/internal/domain/progress"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learning-tracker/internal/infrastructure/persistence/sqlite"
)

// pinger is a store that can report its health.
type pinger interface {
	Ping(ctx context.Context) error
}

// redisPinger adapts a go-redis client to pinger.
type redisPinger struct {
	client goredis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// stores bundles the repositories of the configured driver.
type stores struct {
	progress progress.ProgressRepository
	catalog  progress.Catalog

	// health - nil for the memory driver.
	health pinger

	// migrate applies pending schema migrations.
	migrate func(ctx context.Context) (int, error)

	close func()
}

// openStores connects to the configured database. SQLite migrates on open.
func openStores(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*stores, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("using the in-memory store, progress is lost on exit")
		s := memory.NewStore()
		return &stores{
			progress: s,
			catalog:  s,
			migrate:  func(context.Context) (int, error) { return 0, nil },
			close:    func() {},
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("sqlite store opened", "path", cfg.Path)
		return &stores{
			progress: sqlite.NewProgressRepository(db),
			catalog:  sqlite.NewDefinitionRepository(db),
			health:   db,
			migrate:  db.Migrate,
			close:    func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		pg := postgres.DefaultConfig()
		pg.URL = cfg.URL
		pg.MaxConns = cfg.MaxConns
		pg.MinConns = cfg.MinConns
		pg.MaxConnLifetime = cfg.ConnMaxLifetime
		pg.MaxConnIdleTime = cfg.ConnMaxIdleTime
		pg.ConnectTimeout = cfg.ConnectTimeout

		conn, err := postgres.NewConnection(ctx, pg)
		if err != nil {
			return nil, err
		}
		log.Info("postgres pool connected")
		return &stores{
			progress: postgres.NewProgressRepository(conn),
			catalog:  postgres.NewDefinitionRepository(conn),
			health:   conn,
			migrate:  postgres.NewMigrator(conn).Migrate,
			close:    conn.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// openRedis connects to Redis when it is enabled; nil otherwise.
func openRedis(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	rc := redis.DefaultConfig()
	rc.Addr = cfg.Addr
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.PoolSize = cfg.PoolSize
	rc.DialTimeout = cfg.DialTimeout
	rc.ReadTimeout = cfg.ReadTimeout
	rc.WriteTimeout = cfg.WriteTimeout
	rc.KeyPrefix = cfg.KeyPrefix
	return redis.NewClient(ctx, rc)
}
