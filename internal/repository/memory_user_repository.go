package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-service/internal/domain"
)

// memoryUserRepository keeps users in process. It backs local runs without
// POSTGRES_DSN and the service tests; it mirrors the Postgres error contract.
type memoryUserRepository struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]domain.User
	byUsername map[string]int64
}

// NewMemoryUserRepository returns an empty in-memory repository.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		byID:       make(map[int64]domain.User),
		byUsername: make(map[string]int64),
	}
}

func (r *memoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return ErrUsernameTaken
	}
	r.nextID++
	now := time.Now().UTC()
	user.ID = r.nextID
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = *user
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *memoryUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (r *memoryUserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user := r.byID[id]
	return &user, nil
}

func (r *memoryUserRepository) FindRoleByUsername(ctx context.Context, username string) (domain.Role, error) {
	user, err := r.FindByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func (r *memoryUserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.User, 0, len(r.byID))
	for _, user := range r.byID {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}
