package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/repository"
)

// ErrAuthenticationFailed covers both unknown users and wrong passwords.
var ErrAuthenticationFailed = errors.New("authentication failed")

// AuthService verifies credentials and issues tokens for them.
type AuthService struct {
	users     repository.UserLookup
	hasher    auth.PasswordHasher
	tokenMgr  *auth.TokenManager
	events    events.Dispatcher
	logger    *zap.Logger
	now       func() time.Time
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users  repository.UserLookup
	Hasher auth.PasswordHasher
	Events events.Dispatcher
	Logger *zap.Logger
}

// NewAuthService builds the service and its token manager from cfg.Auth.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	key, err := auth.NewSigningKey(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Compared against when the username is unknown so both failure paths cost one bcrypt.
	dummyHash, err := deps.Hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}

	return &AuthService{
		users:     deps.Users,
		hasher:    deps.Hasher,
		tokenMgr:  auth.NewTokenManager(key, cfg.Auth.TokenTTL(), cfg.Auth.SchemePrefix),
		events:    deps.Events,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummyHash,
	}, nil
}

// Authenticate confirms username and password and returns the matching principal.
// It does not issue a token.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*auth.Principal, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.Matches(password, s.dummyHash)
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if !s.hasher.Matches(password, user.PasswordHash) {
		return nil, ErrAuthenticationFailed
	}
	return &auth.Principal{Subject: user.Username, Role: user.Role, UserID: user.ID}, nil
}

// Login authenticates the credentials and issues a token. The role is resolved
// again at issuance so the token reflects the stored role.
func (s *AuthService) Login(ctx context.Context, username, password string) (auth.Token, error) {
	principal, err := s.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			s.logger.Warn("authentication failed", zap.String("username", username))
			s.publish(ctx, events.New(events.EventLoginFailed, username, nil))
		}
		return auth.Token{}, err
	}

	role, err := s.users.FindRoleByUsername(ctx, principal.Subject)
	if err != nil {
		return auth.Token{}, err
	}

	token, err := s.tokenMgr.Issue(principal.Subject, role, s.now(), auth.WithUserID(principal.UserID))
	if err != nil {
		return auth.Token{}, err
	}

	s.publish(ctx, events.New(events.EventLoginSucceeded, principal.Subject, events.LoginPayload{Role: role.String()}))
	return token, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
