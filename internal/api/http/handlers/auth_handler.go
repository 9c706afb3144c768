package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	token, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			return apperrors.NewAuthenticationFailed()
		}
		return apperrors.NewInternalError(err)
	}

	return c.JSON(dto.AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt})
}
