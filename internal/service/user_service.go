package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// UserService manages user accounts.
type UserService struct {
	users  repository.UserRepository
	hasher auth.PasswordHasher
	events events.Dispatcher
	logger *zap.Logger
}

// UserDependencies encapsulates collaborators for the user service.
type UserDependencies struct {
	Users  repository.UserRepository
	Hasher auth.PasswordHasher
	Events events.Dispatcher
	Logger *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: deps.Users, hasher: deps.Hasher, events: deps.Events, logger: logger}
}

// Create registers a user with a hashed password. An empty role defaults to CLIENT.
func (s *UserService) Create(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password required", nil)
	}
	if role == "" {
		role = domain.RoleClient
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperrors.NewValidationError("password too long",
				map[string]any{"max_bytes": auth.MaxPasswordBytes})
		}
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{Username: username, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}
		return nil, apperrors.MapError(err)
	}

	if s.events != nil {
		event := events.New(events.EventUserCreated, user.Username, events.UserCreatedPayload{UserID: user.ID, Role: role.String()})
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
		}
	}
	return user, nil
}

// Get returns the user with id.
func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// List returns all users ordered by id.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}
