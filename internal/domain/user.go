// Package domain holds the persistent entities shared by the store and
// service layers.
package domain

import "time"

type User struct {
	ID               string
	Username         string
	Email            string
	DisplayName      string
	PhoneNumber      string
	PasswordHash     string // argon2 encoded
	RoleID           string // Foreign key to roles table, empty when unassigned
	IsActive         bool
	LocationID       *int64 // Nullable home location
	SecurityQuestion *string
	SecurityAnswer   *string
	TwoFactorEnabled bool
	TOTPSecret       *string // Base32 encoded, set when enrolled in app-based 2FA
	FailedLogins     int
	LockedUntil      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Locked reports whether the account lockout is still in effect at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
