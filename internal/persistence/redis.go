package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/config"
)

const cacheProbeTimeout = 2 * time.Second

// Redis holds the client behind the user cache. Redis is optional: the token
// path never touches it, and user reads fall back to the store without it.
type Redis struct {
	Client    *redis.Client
	available bool
}

// NewRedis opens the user cache client and probes it once. An unreachable
// server leaves the client in place so readiness can keep reporting on it,
// but Available reports false and the cache is not wired.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("user cache disabled", zap.String("reason", "REDIS_ADDR not set"))
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	probeCtx, cancel := context.WithTimeout(ctx, cacheProbeTimeout)
	defer cancel()
	if err := client.Ping(probeCtx).Err(); err != nil {
		logger.Warn("user cache disabled; redis unreachable",
			zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB), zap.Error(err))
		return &Redis{Client: client}
	}

	logger.Info("user cache enabled",
		zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB), zap.Duration("ttl", cfg.UserCacheTTL()))
	return &Redis{Client: client, available: true}
}

// Available reports whether the startup probe reached Redis.
func (r *Redis) Available() bool {
	return r != nil && r.Client != nil && r.available
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("user cache not configured")
	}
	return r.Client.Ping(ctx).Err()
}
