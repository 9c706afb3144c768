package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/domain"
)

const userCacheKeyPrefix = "users:id:"

// cachedUser is the cached form of a user. Password hashes are never cached.
type cachedUser struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// cachedUserRepository is a read-through Redis cache in front of GetByID.
type cachedUserRepository struct {
	UserRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository wraps next with a Redis cache for id lookups. Cache
// failures are logged and fall back to next.
func NewCachedUserRepository(next UserRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) UserRepository {
	if client == nil || ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedUserRepository{UserRepository: next, client: client, ttl: ttl, logger: logger}
}

func (r *cachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	key := userCacheKey(id)

	payload, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedUser
		if jsonErr := json.Unmarshal(payload, &cached); jsonErr == nil {
			return &domain.User{
				ID:        cached.ID,
				Username:  cached.Username,
				Role:      cached.Role,
				CreatedAt: cached.CreatedAt,
				UpdatedAt: cached.UpdatedAt,
			}, nil
		}
		r.logger.Warn("discarding corrupt user cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("user cache read failed", zap.String("key", key), zap.Error(err))
	}

	user, err := r.UserRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(cachedUser{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	if err == nil {
		if setErr := r.client.Set(ctx, key, encoded, r.ttl).Err(); setErr != nil {
			r.logger.Warn("user cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return user, nil
}

func userCacheKey(id int64) string {
	return userCacheKeyPrefix + strconv.FormatInt(id, 10)
}
