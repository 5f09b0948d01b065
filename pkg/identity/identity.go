// Package identity defines the explicit caller identity passed into every
// engine operation. Identity is established by an upstream auth proxy and
// handed to this service; it is never read from ambient state.
package identity

import (
	"fmt"
	"strings"
)

// Role represents a dashboard user role
type Role string

const (
	// RoleAdmin can see every report in the tenant catalog and manage
	// per-report grants for other users.
	RoleAdmin Role = "admin"
	// RoleUser sees only the reports it has been explicitly granted.
	RoleUser Role = "user"
	// RoleSuperAdmin operates the cross-tenant management surface and has
	// no report access of its own.
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole normalizes and validates a role string
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleSuperAdmin:
		return true
	}
	return false
}

// CanManageGrants reports whether the role may edit other users' report
// permissions. Super admins run the management surface, so they qualify
// even though they have no report access themselves.
func (r Role) CanManageGrants() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Identity identifies the caller of an engine operation
type Identity struct {
	UserID   int64 `json:"user_id"`
	TenantID int64 `json:"tenant_id"`
	Role     Role  `json:"role"`
}

// Validate checks that the identity is complete enough to authorize against
func (id Identity) Validate() error {
	if id.UserID <= 0 {
		return fmt.Errorf("identity missing user id")
	}
	if id.TenantID <= 0 {
		return fmt.Errorf("identity missing tenant id")
	}
	if !id.Role.Valid() {
		return fmt.Errorf("identity has unknown role %q", id.Role)
	}
	return nil
}
