package auth

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

// Authorization outcomes.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("insufficient permissions")
)

type ruleKind int

const (
	rulePermitAll ruleKind = iota
	ruleAuthenticated
	ruleRequireRole
	ruleRoleOrSelf
)

// Rule is a declarative access rule attached to a route.
type Rule struct {
	kind    ruleKind
	role    domain.Role
	idParam string
}

// PermitAll allows every request, authenticated or not.
func PermitAll() Rule {
	return Rule{kind: rulePermitAll}
}

// Authenticated requires any principal.
func Authenticated() Rule {
	return Rule{kind: ruleAuthenticated}
}

// RequireRole requires a principal holding role.
func RequireRole(role domain.Role) Rule {
	return Rule{kind: ruleRequireRole, role: role}
}

// RequireRoleOrSelf requires role, or a principal whose user id equals the idParam path value.
func RequireRoleOrSelf(role domain.Role, idParam string) Rule {
	return Rule{kind: ruleRoleOrSelf, role: role, idParam: idParam}
}

// Evaluate checks principal (nil when unauthenticated) against the rule.
// params looks up path parameters by name.
func (r Rule) Evaluate(principal *Principal, params func(string) string) error {
	if r.kind == rulePermitAll {
		return nil
	}
	if principal == nil {
		return ErrUnauthorized
	}

	switch r.kind {
	case ruleAuthenticated:
		return nil
	case ruleRequireRole:
		if principal.HasRole(r.role) {
			return nil
		}
		return ErrForbidden
	case ruleRoleOrSelf:
		if principal.HasRole(r.role) {
			return nil
		}
		if !principal.HasUserID() || params == nil {
			return ErrForbidden
		}
		id, err := strconv.ParseInt(params(r.idParam), 10, 64)
		if err != nil || id != principal.UserID {
			return ErrForbidden
		}
		return nil
	default:
		return ErrForbidden
	}
}

// Guard enforces rule on a route using the principal installed by AuthMiddleware.
func Guard(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		err := rule.Evaluate(principal, func(name string) string {
			return c.Params(name)
		})
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, ErrUnauthorized):
			return apperrors.NewUnauthorized("authentication required")
		default:
			return apperrors.NewForbidden("insufficient permissions")
		}
	}
}
