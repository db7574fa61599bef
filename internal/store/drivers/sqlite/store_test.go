package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedUser(t *testing.T, s *Store, mutate func(*domain.User)) domain.User {
	t.Helper()
	ctx := context.Background()

	role, err := s.Roles().GetRoleByName(ctx, domain.RoleNameManager)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     "mgr-" + idx.New().String(),
		Email:        idx.New().String() + "@example.com",
		DisplayName:  "Test Manager",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		RoleID:       role.ID,
		IsActive:     true,
	}
	if mutate != nil {
		mutate(&u)
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	return got
}

func TestMigrationsSeedRoles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	roles, err := s.Roles().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	require.Equal(t, domain.RoleNameAdmin, roles[0].Name)
	require.Equal(t, domain.RoleNameManager, roles[1].Name)
}

func TestUsersCreateAndLookup(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	question := "Favourite colour?"
	answer := "Blue"
	u := seedUser(t, s, func(u *domain.User) {
		u.SecurityQuestion = &question
		u.SecurityAnswer = &answer
	})

	byName, err := s.Users().GetUserByUsername(ctx, u.Username)
	require.NoError(t, err)
	require.Equal(t, u.ID, byName.ID)
	require.NotNil(t, byName.SecurityQuestion)
	require.Equal(t, question, *byName.SecurityQuestion)

	_, err = s.Users().GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Duplicate username is rejected.
	dup := u
	dup.ID = idx.New().String()
	dup.Email = "other@example.com"
	err = s.Users().CreateUser(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestActiveUserByEmailExcludesInactive(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, nil)

	found, err := s.Users().GetActiveUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, found.ID)

	require.NoError(t, s.Users().SetActive(ctx, u.ID, false))
	_, err = s.Users().GetActiveUserByEmail(ctx, u.Email)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFailedLoginCounterLocksAtThreshold(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, nil)
	lockUntil := time.Now().Add(15 * time.Minute)

	for i := 1; i < 5; i++ {
		n, err := s.Users().RecordFailedLogin(ctx, u.ID, 5, lockUntil)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.LockedUntil)

	n, err := s.Users().RecordFailedLogin(ctx, u.ID, 5, lockUntil)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LockedUntil)
	require.True(t, got.Locked(time.Now()))
	require.Zero(t, got.FailedLogins)

	require.NoError(t, s.Users().ClearLoginFailures(ctx, u.ID))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.LockedUntil)
}

func TestRoleDeleteBlockedWhileReferenced(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	role := domain.Role{ID: idx.New().String(), Name: "Auditor"}
	require.NoError(t, s.Roles().CreateRole(ctx, role))

	u := seedUser(t, s, func(u *domain.User) { u.RoleID = role.ID })

	err := s.Roles().DeleteRole(ctx, role.ID)
	require.ErrorIs(t, err, store.ErrRoleInUse)

	// Reassign the user, then deletion succeeds.
	mgr, err := s.Roles().GetRoleByName(ctx, domain.RoleNameManager)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `UPDATE users SET role_id = ? WHERE id = ?`, mgr.ID, u.ID)
	require.NoError(t, err)

	require.NoError(t, s.Roles().DeleteRole(ctx, role.ID))
	_, err = s.Roles().GetRoleByID(ctx, role.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.Roles().DeleteRole(ctx, role.ID), store.ErrNotFound)
}

func TestSessionsRoundTripAndPurge(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, nil)
	now := time.Now()

	sess := domain.Session{
		ID:               idx.New().String(),
		UserID:           u.ID,
		TokenFingerprint: "fp-live",
		Attrs: domain.SessionAttrs{
			Username:   u.Username,
			Role:       domain.RoleNameManager,
			EmployeeID: 1,
			LocationID: 0,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, s.Sessions().CreateSession(ctx, sess))

	expired := sess
	expired.ID = idx.New().String()
	expired.TokenFingerprint = "fp-expired"
	expired.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, s.Sessions().CreateSession(ctx, expired))

	got, err := s.Sessions().GetSessionByFingerprint(ctx, "fp-live")
	require.NoError(t, err)
	require.Equal(t, sess.Attrs, got.Attrs)

	require.NoError(t, s.Sessions().DeleteExpiredSessions(ctx))
	_, err = s.Sessions().GetSessionByFingerprint(ctx, "fp-expired")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Sessions().DeleteUserSessions(ctx, u.ID))
	_, err = s.Sessions().GetSessionByFingerprint(ctx, "fp-live")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTwoFactorChallengeAttemptsAndExpiry(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, nil)
	now := time.Now()

	c := domain.TwoFactorChallenge{
		ID:              idx.New().String(),
		UserID:          u.ID,
		CodeFingerprint: "code-fp",
		RememberMe:      true,
		ReturnURL:       "/inventory",
		CreatedAt:       now,
		ExpiresAt:       now.Add(5 * time.Minute),
	}
	require.NoError(t, s.TwoFactorChallenges().CreateChallenge(ctx, c))

	got, err := s.TwoFactorChallenges().GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, got.RememberMe)
	require.Equal(t, "/inventory", got.ReturnURL)

	got, err = s.TwoFactorChallenges().IncrementChallengeAttempts(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)

	stale := c
	stale.ID = idx.New().String()
	stale.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, s.TwoFactorChallenges().CreateChallenge(ctx, stale))
	_, err = s.TwoFactorChallenges().GetChallenge(ctx, stale.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.TwoFactorChallenges().DeleteChallenge(ctx, c.ID))
	_, err = s.TwoFactorChallenges().GetChallenge(ctx, c.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTrustedDevicesScopeAndExpiry(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, nil)
	other := seedUser(t, s, func(u *domain.User) {
		u.Username = "other"
		u.Email = "other@example.com"
	})
	now := time.Now()

	d := domain.TrustedDevice{
		ID:               idx.New().String(),
		UserID:           u.ID,
		TokenFingerprint: "device-fp",
		CreatedAt:        now,
		ExpiresAt:        now.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, s.TrustedDevices().CreateTrustedDevice(ctx, d))

	got, err := s.TrustedDevices().GetTrustedDevice(ctx, u.ID, "device-fp")
	require.NoError(t, err)
	require.Equal(t, d.ID, got.ID)

	// Another user cannot ride on the same fingerprint.
	_, err = s.TrustedDevices().GetTrustedDevice(ctx, other.ID, "device-fp")
	require.ErrorIs(t, err, store.ErrNotFound)

	stale := domain.TrustedDevice{
		ID:               idx.New().String(),
		UserID:           u.ID,
		TokenFingerprint: "stale-fp",
		CreatedAt:        now.Add(-time.Hour),
		ExpiresAt:        now.Add(-time.Minute),
	}
	require.NoError(t, s.TrustedDevices().CreateTrustedDevice(ctx, stale))
	_, err = s.TrustedDevices().GetTrustedDevice(ctx, u.ID, "stale-fp")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.TrustedDevices().DeleteExpiredTrustedDevices(ctx))
	require.NoError(t, s.TrustedDevices().DeleteUserTrustedDevices(ctx, u.ID))
	_, err = s.TrustedDevices().GetTrustedDevice(ctx, u.ID, "device-fp")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestInventorySummaryScopesByLocation(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, nil)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (name, address) VALUES ('Warehouse A', '1 Dock Rd'), ('Warehouse B', '2 Dock Rd');
		INSERT INTO products (sku, name, category, unit_price) VALUES
			('SKU-1', 'Widget', 'Parts', 2.50),
			('SKU-2', 'Gadget', 'Parts', 9.99);
		INSERT INTO inventory_items (product_id, location_id, quantity, reorder_at) VALUES
			(1, 1, 100, 10),
			(2, 1, 5, 10),
			(1, 2, 40, 10);`)
	require.NoError(t, err)

	all, err := s.Inventory().Summary(ctx, 0)
	require.NoError(t, err)
	require.EqualValues(t, 2, all.TotalProducts)
	require.EqualValues(t, 145, all.TotalUnits)
	require.EqualValues(t, 1, all.LowStockLines)
	require.EqualValues(t, 2, all.Locations)
	require.EqualValues(t, 1, all.ActiveUsers)

	scoped, err := s.Inventory().Summary(ctx, 2)
	require.NoError(t, err)
	require.EqualValues(t, 1, scoped.TotalProducts)
	require.EqualValues(t, 40, scoped.TotalUnits)
	require.EqualValues(t, 0, scoped.LowStockLines)

	lines, err := s.Inventory().ListStock(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, line := range lines {
		require.Equal(t, "Warehouse A", line.LocationName)
	}

	allLines, err := s.Inventory().ListStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, allLines, 3)
}
