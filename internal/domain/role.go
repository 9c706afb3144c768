package domain

import (
	"errors"
	"strings"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleClient Role = "CLIENT"
)

// authorityPrefix is how roles are stored in the users table.
const authorityPrefix = "ROLE_"

// ErrUnknownRole is returned for role names outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts either the bare name (ADMIN) or the stored authority (ROLE_ADMIN).
func ParseRole(value string) (Role, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(value)), authorityPrefix)
	role := Role(name)
	if !role.Valid() {
		return "", ErrUnknownRole
	}
	return role, nil
}

// Valid reports whether r belongs to the role set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClient:
		return true
	default:
		return false
	}
}

// Authority returns the prefixed form persisted for r.
func (r Role) Authority() string {
	return authorityPrefix + string(r)
}

func (r Role) String() string {
	return string(r)
}
