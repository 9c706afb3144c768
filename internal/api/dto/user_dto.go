package dto

import (
	"time"

	"github.com/spec-kit/auth-service/internal/domain"
)

// LoginRequest payload for POST /auth.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// CreateUserRequest payload for POST /users. Role accepts ADMIN, CLIENT or the ROLE_ form.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=255"`
	Password string `json:"password" validate:"required,min=1,maxbytes=72"`
	Role     string `json:"role" validate:"omitempty,max=32"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of a user; the password hash never leaves the service.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Role:      user.Role.String(),
		CreatedAt: user.CreatedAt,
	}
}
