package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
)

// ErrStoreNotConfigured is returned by Ping when the service runs without POSTGRES_DSN.
var ErrStoreNotConfigured = errors.New("user store not configured")

// Postgres is the durable user store. A zero Postgres means users live in memory.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres opens the user store pool. An empty DSN is not an error: the
// caller falls back to the in-memory store.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("user store is in memory; accounts are lost on restart", zap.String("reason", "POSTGRES_DSN not set"))
		return &Postgres{}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_DSN: %w", err)
	}
	applyPoolLimits(poolCfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping user store: %w", err)
	}

	logger.Info("user store connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns))
	return &Postgres{Pool: pool}, nil
}

func applyPoolLimits(poolCfg *pgxpool.Config, cfg config.PostgresConfig) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p.Configured() {
		p.Pool.Close()
	}
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if !p.Configured() {
		return ErrStoreNotConfigured
	}
	return p.Pool.Ping(ctx)
}

// Configured reports whether a pool was opened.
func (p *Postgres) Configured() bool {
	return p != nil && p.Pool != nil
}

// PoolHandle returns the underlying pgx pool, nil for the in-memory store.
func (p *Postgres) PoolHandle() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.Pool
}
