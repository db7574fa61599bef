package domain

import "time"

type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleKind classifies a role name for post-login dispatch. Anything that is
// not Admin or Manager lands on the manager dashboard with manager-level
// visibility only.
type RoleKind int

const (
	RoleOther RoleKind = iota
	RoleManager
	RoleAdmin
)

const (
	RoleNameAdmin   = "Admin"
	RoleNameManager = "Manager"
)

func KindOf(name string) RoleKind {
	switch name {
	case RoleNameAdmin:
		return RoleAdmin
	case RoleNameManager:
		return RoleManager
	default:
		return RoleOther
	}
}

// LandingPath is the dashboard each role kind is redirected to after login.
func (k RoleKind) LandingPath() string {
	if k == RoleAdmin {
		return "/admin"
	}
	return "/dashboard"
}
