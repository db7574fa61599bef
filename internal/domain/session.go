package domain

import "time"

// SessionAttrs is the full set of attributes a signed-in session carries.
// They are written together when the session is created and never mutated
// piecemeal afterwards.
type SessionAttrs struct {
	Username   string
	Role       string
	EmployeeID int64
	LocationID int64
}

// Session is a server-side login session. Only a SHA-256 fingerprint of the
// cookie token is stored.
type Session struct {
	ID               string // ULID
	UserID           string
	TokenFingerprint string
	Attrs            SessionAttrs
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
