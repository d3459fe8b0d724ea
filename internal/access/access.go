// Package access models the caller of an operation and the role checks the
// learning services run before touching any state.
package access

import (
	"fmt"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// Role is the capability class of a user.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// ParseRole converts a stored role name to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   Role
}

func Student(id string) Actor    { return Actor{UserID: id, Role: RoleStudent} }
func Instructor(id string) Actor { return Actor{UserID: id, Role: RoleInstructor} }
func Admin(id string) Actor      { return Actor{UserID: id, Role: RoleAdmin} }

func (a Actor) IsStudent() bool    { return a.Role == RoleStudent }
func (a Actor) IsInstructor() bool { return a.Role == RoleInstructor }
func (a Actor) IsAdmin() bool      { return a.Role == RoleAdmin }

// Require returns PermissionDenied unless the actor holds one of roles.
func (a Actor) Require(roles ...Role) error {
	if a.UserID == "" {
		return apperr.New(apperr.Unauthenticated, "no authenticated user")
	}
	for _, r := range roles {
		if a.Role == r {
			return nil
		}
	}
	return apperr.New(apperr.PermissionDenied, "%s role cannot perform this action", a.Role)
}

// CanManage reports whether the actor may change resources owned by ownerID.
func (a Actor) CanManage(ownerID string) bool {
	return a.IsAdmin() || (a.IsInstructor() && a.UserID == ownerID)
}

// RequireOwner returns PermissionDenied unless the actor is an admin or the
// instructor identified by ownerID.
func (a Actor) RequireOwner(ownerID string) error {
	if err := a.Require(RoleInstructor, RoleAdmin); err != nil {
		return err
	}
	if !a.CanManage(ownerID) {
		return apperr.New(apperr.PermissionDenied, "only the course instructor can perform this action")
	}
	return nil
}
