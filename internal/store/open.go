package store

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
)

// Open builds the Client selected by cfg.Driver and checks that it is
// reachable.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory document store")
		return NewMemoryStore(), nil

	case config.DriverPostgres:
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
		}
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("store: parse DSN: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: ping: %w", err)
		}
		s := NewPgStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: %w", err)
		}
		logger.Info("using postgres document store", zap.Int32("max_conns", poolCfg.MaxConns))
		return s, nil

	case config.DriverRedis:
		addr := cfg.Redis.Address()
		s := NewRedisStore(addr, cfg.Redis.DB, WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("store: ping redis %s: %w", addr, err)
		}
		logger.Info("using redis document store", zap.String("addr", addr), zap.Int("db", cfg.Redis.DB))
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}
