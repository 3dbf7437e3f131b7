package domain

import "fmt"

// Role is the caller's access level attached to every query.
// Authentication happens upstream; the engine only enforces redaction.
type Role string

const (
	// RoleGuest sees public registry data only.
	RoleGuest Role = "guest"
	// RoleExpert sees inspection priorities and other restricted fields.
	RoleExpert Role = "expert"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleGuest, RoleExpert:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// CanViewSensitive reports whether the role may see sensitivity-flagged evidence.
func (r Role) CanViewSensitive() bool {
	return r == RoleExpert
}
