package rbac

import (
	"fmt"
	"time"
)

// Role is the closed set of roles a user can hold. Exactly one role is
// active per user; accounts without an assignment act as RoleUser.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// ParseRole maps a stored role string onto the closed enum. Unknown values
// are rejected rather than falling through silently.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleModerator:
		return RoleModerator, nil
	case RoleUser:
		return RoleUser, nil
	}
	return RoleUser, fmt.Errorf("rbac: unknown role %q", s)
}

// String returns the wire representation of the role.
func (r Role) String() string { return string(r) }

// Capability is an action gated by role.
type Capability string

const (
	CapViewDashboard  Capability = "view_dashboard"
	CapManageProjects Capability = "manage_projects"
	CapViewDonations  Capability = "view_donations"
	CapViewAnalytics  Capability = "view_analytics"
	CapManageRoles    Capability = "manage_roles"
	CapManageSettings Capability = "manage_settings"
)

// Allows reports whether the role grants the capability. Moderators share
// every dashboard surface except role management and settings, which stay
// admin-exclusive.
func Allows(role Role, cap Capability) bool {
	switch cap {
	case CapViewDashboard, CapManageProjects, CapViewDonations, CapViewAnalytics:
		return role == RoleAdmin || role == RoleModerator
	case CapManageRoles, CapManageSettings:
		return role == RoleAdmin
	}
	return false
}

// Assignment is a role record attached to a user.
type Assignment struct {
	UserID    int64
	Role      Role
	CreatedAt time.Time
}

// AuthSession is the per-request identity snapshot handed to handlers.
type AuthSession struct {
	UserID int64
	Role   Role
}
