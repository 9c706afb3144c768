package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller for one request.
type Principal struct {
	Subject string
	Role    domain.Role
	UserID  int64
}

// NewPrincipal builds a principal from verified claims.
func NewPrincipal(claims *Claims) *Principal {
	return &Principal{
		Subject: claims.Subject,
		Role:    claims.Role,
		UserID:  claims.UserID,
	}
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role domain.Role) bool {
	return p != nil && p.Role == role
}

// HasUserID reports whether the token carried a user id.
func (p *Principal) HasUserID() bool {
	return p != nil && p.UserID > 0
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil
}
