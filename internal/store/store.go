package store

import (
	"context"
	"errors"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrRoleInUse is returned when deleting a role that users still reference.
	ErrRoleInUse = errors.New("store: role is assigned to users")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Users() Users
	Roles() Roles
	Sessions() Sessions
	TwoFactorChallenges() TwoFactorChallenges
	TrustedDevices() TrustedDevices
	Inventory() Inventory

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetActiveUserByEmail is used by password recovery. Inactive users are
	// excluded so recovery cannot resurrect a disabled account.
	GetActiveUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// RecordFailedLogin bumps failed_logins; once the counter reaches
	// maxAttempts the account is locked until lockedUntil and the counter
	// resets. Returns the new counter value.
	RecordFailedLogin(ctx context.Context, userID string, maxAttempts int, lockedUntil time.Time) (int, error)

	// ClearLoginFailures resets failed_logins and locked_until after a
	// successful sign-in.
	ClearLoginFailures(ctx context.Context, userID string) error

	// SetActive flips the is_active flag.
	SetActive(ctx context.Context, userID string, active bool) error
}

type Roles interface {
	// GetRoleByID fetches a role by its ID.
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)

	// GetRoleByName fetches a role by its name (for seeding and assignment).
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// ListAll returns all roles ordered by name.
	ListAll(ctx context.Context) ([]domain.Role, error)

	// CreateRole inserts a new role (id is ULID).
	CreateRole(ctx context.Context, r domain.Role) error

	// RenameRole changes a role's name and bumps updated_at.
	RenameRole(ctx context.Context, roleID, name string) error

	// DeleteRole removes a role. Returns ErrRoleInUse while users still
	// reference it.
	DeleteRole(ctx context.Context, roleID string) error
}

type Sessions interface {
	// CreateSession stores a new login session.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByFingerprint returns a session by the SHA-256 fingerprint of
	// its cookie token.
	GetSessionByFingerprint(ctx context.Context, fingerprint string) (domain.Session, error)

	// DeleteSession removes a single session (logout).
	DeleteSession(ctx context.Context, id string) error

	// DeleteUserSessions removes every session for a user (password reset,
	// deactivation).
	DeleteUserSessions(ctx context.Context, userID string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

type TwoFactorChallenges interface {
	// CreateChallenge stores a pending second-factor challenge.
	CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error

	// GetChallenge retrieves a challenge by its token (only if not expired).
	GetChallenge(ctx context.Context, token string) (domain.TwoFactorChallenge, error)

	// IncrementChallengeAttempts bumps the failed attempt counter and returns
	// the updated challenge.
	IncrementChallengeAttempts(ctx context.Context, token string) (domain.TwoFactorChallenge, error)

	// DeleteChallenge removes a challenge once consumed or exhausted.
	DeleteChallenge(ctx context.Context, token string) error

	// DeleteExpiredChallenges is housekeeping.
	DeleteExpiredChallenges(ctx context.Context) error
}

type TrustedDevices interface {
	// CreateTrustedDevice records a browser that may skip the second factor.
	CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error

	// GetTrustedDevice looks a device up by the SHA-256 fingerprint of its
	// cookie token, scoped to the user (only if not expired).
	GetTrustedDevice(ctx context.Context, userID, fingerprint string) (domain.TrustedDevice, error)

	// DeleteUserTrustedDevices forgets every device a user trusted (password
	// reset).
	DeleteUserTrustedDevices(ctx context.Context, userID string) error

	// DeleteExpiredTrustedDevices is housekeeping.
	DeleteExpiredTrustedDevices(ctx context.Context) error
}

type Inventory interface {
	// GetLocation fetches a location by id.
	GetLocation(ctx context.Context, id int64) (domain.Location, error)

	// ListLocations returns all locations ordered by name.
	ListLocations(ctx context.Context) ([]domain.Location, error)

	// ListStock returns joined stock lines. locationID 0 means all locations.
	ListStock(ctx context.Context, locationID int64) ([]domain.StockLine, error)

	// Summary aggregates counts for a dashboard. locationID 0 means all
	// locations.
	Summary(ctx context.Context, locationID int64) (domain.DashboardSummary, error)
}
