package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/service"
	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// UsersHandler exposes user account endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Create handles POST /users. Anyone may register a CLIENT; other roles need an ADMIN caller.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	var role domain.Role
	if req.Role != "" {
		parsed, err := domain.ParseRole(req.Role)
		if err != nil {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": req.Role})
		}
		role = parsed
	}
	// Registration is open, so only an administrator may hand out anything above CLIENT.
	if role != "" && role != domain.RoleClient {
		if principal, ok := auth.PrincipalFromContext(c); !ok || !principal.HasRole(domain.RoleAdmin) {
			return apperrors.NewForbidden("only administrators can assign the " + role.String() + " role")
		}
	}

	user, err := h.users.Create(c.UserContext(), req.Username, req.Password, role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("invalid user id", map[string]any{"id": c.Params("id")})
	}

	user, err := h.users.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return err
	}

	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, dto.NewUserResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}
