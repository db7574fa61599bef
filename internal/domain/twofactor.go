package domain

import "time"

// MaxTwoFactorAttempts is the number of wrong codes allowed before a
// challenge is invalidated.
const MaxTwoFactorAttempts = 5

// TwoFactorChallenge is a pending second-factor step between a successful
// password check and session issuance. For users on emailed codes,
// CodeFingerprint holds the SHA-256 of the code that was sent; TOTP-enrolled
// users validate against their authenticator instead and the fingerprint is
// empty.
type TwoFactorChallenge struct {
	ID              string // ULID, doubles as the challenge token
	UserID          string
	CodeFingerprint string
	RememberMe      bool
	ReturnURL       string
	Attempts        int
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

func (c *TwoFactorChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// TrustedDevice marks a browser that completed a second-factor check and
// asked to be remembered. Logins from it skip the challenge until the trust
// expires. The cookie token is stored only as its SHA-256 fingerprint.
type TrustedDevice struct {
	ID               string
	UserID           string
	TokenFingerprint string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

func (d *TrustedDevice) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}
