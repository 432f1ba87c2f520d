package workflow

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleOfficer   Role = "officer"
	RoleCensor    Role = "censor"
	RoleInspector Role = "inspector"
	// RoleAdmin manages the sender mailbox; it owns no workflow stage.
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleOfficer, RoleCensor, RoleInspector, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrForbidden, s)
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	Name string
	Role Role
}

// Authorize fails with ErrForbidden unless the actor holds the role.
func (a Actor) Authorize(required Role) error {
	if a.Role != required {
		return fmt.Errorf("%w: %s role required", ErrForbidden, required)
	}
	return nil
}
