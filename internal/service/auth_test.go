package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/internal/store/drivers/sqlite"
	"github.com/harlowglass/stockroom/pkg/cryptox"
	"github.com/harlowglass/stockroom/pkg/idx"
	"github.com/harlowglass/stockroom/pkg/jwtx"
	"github.com/harlowglass/stockroom/pkg/mailx"
)

type testEnv struct {
	store    store.Store
	mailer   *mailx.CaptureMailer
	sessions *SessionsService
	auth     *AuthService
	recovery *RecoveryService
	roles    *RolesService
	users    *UsersService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	mailer := &mailx.CaptureMailer{}
	sessions := &SessionsService{
		Store:       st,
		Remember:    jwtx.NewRememberTokens("stockroom", []byte("test-secret")),
		SessionTTL:  12 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
	}

	return &testEnv{
		store:    st,
		mailer:   mailer,
		sessions: sessions,
		auth: &AuthService{
			Store:            st,
			Sessions:         sessions,
			Mailer:           mailer,
			MaxLoginAttempts: 5,
			LockoutFor:       15 * time.Minute,
			ChallengeTTL:     5 * time.Minute,
			TrustDeviceFor:   30 * 24 * time.Hour,
		},
		recovery: &RecoveryService{Store: st},
		roles:    &RolesService{Store: st},
		users:    &UsersService{Store: st},
	}
}

type userOpts struct {
	roleName   string
	inactive   bool
	locationID *int64
	question   string
	answer     string
	twoFactor  bool
	totpSecret string
}

func (e *testEnv) seedUser(t *testing.T, username, password string, opts userOpts) domain.User {
	t.Helper()
	ctx := context.Background()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:               idx.New().String(),
		Username:         username,
		Email:            username + "@example.com",
		PasswordHash:     hash,
		IsActive:         !opts.inactive,
		LocationID:       opts.locationID,
		TwoFactorEnabled: opts.twoFactor,
	}
	if opts.roleName != "" {
		role, err := e.store.Roles().GetRoleByName(ctx, opts.roleName)
		require.NoError(t, err)
		u.RoleID = role.ID
	}
	if opts.question != "" {
		u.SecurityQuestion = &opts.question
		u.SecurityAnswer = &opts.answer
	}
	if opts.totpSecret != "" {
		u.TOTPSecret = &opts.totpSecret
	}

	require.NoError(t, e.store.Users().CreateUser(ctx, u))
	return u
}

func TestLoginRejectsUnknownAndInactiveUsers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Login(ctx, "ghost", "whatever", false, "", "")
	require.ErrorIs(t, err, ErrInvalidLoginOrInactive)

	env.seedUser(t, "dormant", "correct horse", userOpts{roleName: domain.RoleNameManager, inactive: true})
	_, err = env.auth.Login(ctx, "dormant", "correct horse", false, "", "")
	require.ErrorIs(t, err, ErrInvalidLoginOrInactive)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "mallory", "right-password", userOpts{roleName: domain.RoleNameManager})

	for range 5 {
		_, err := env.auth.Login(ctx, "mallory", "wrong-password", false, "", "")
		require.ErrorIs(t, err, ErrInvalidLogin)
	}

	// Even the correct password is refused while locked.
	_, err := env.auth.Login(ctx, "mallory", "right-password", false, "", "")
	require.ErrorIs(t, err, ErrAccountLockedOut)
}

func TestLoginFailureCounterResetsOnSuccess(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "carol", "pw-carol", userOpts{roleName: domain.RoleNameManager})

	for range 4 {
		_, err := env.auth.Login(ctx, "carol", "nope", false, "", "")
		require.ErrorIs(t, err, ErrInvalidLogin)
	}

	_, err := env.auth.Login(ctx, "carol", "pw-carol", false, "", "")
	require.NoError(t, err)

	got, err := env.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedLogins)

	// Four more wrong attempts must not lock; the counter started over.
	for range 4 {
		_, err := env.auth.Login(ctx, "carol", "nope", false, "", "")
		require.ErrorIs(t, err, ErrInvalidLogin)
	}
	_, err = env.auth.Login(ctx, "carol", "pw-carol", false, "", "")
	require.NoError(t, err)
}

func TestLoginRedirectsByRole(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "root", "pw-root", userOpts{roleName: domain.RoleNameAdmin})
	env.seedUser(t, "mgr", "pw-mgr", userOpts{roleName: domain.RoleNameManager})
	env.seedUser(t, "norole", "pw-none", userOpts{})

	cases := []struct {
		username, password, want string
	}{
		{"root", "pw-root", "/admin"},
		{"mgr", "pw-mgr", "/dashboard"},
		{"norole", "pw-none", "/dashboard"},
	}
	for _, tc := range cases {
		res, err := env.auth.Login(ctx, tc.username, tc.password, false, "", "")
		require.NoError(t, err)
		require.Equal(t, tc.want, res.RedirectTo)
		require.NotEmpty(t, res.SessionToken)
		require.Empty(t, res.ChallengeToken)
	}

	// An explicit return URL wins over the role table.
	res, err := env.auth.Login(ctx, "root", "pw-root", false, "/inventory", "")
	require.NoError(t, err)
	require.Equal(t, "/inventory", res.RedirectTo)
}

func TestLoginSessionAttrs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	loc := int64(7)
	env.seedUser(t, "located", "pw", userOpts{roleName: domain.RoleNameManager, locationID: &loc})
	env.seedUser(t, "floating", "pw", userOpts{})

	res, err := env.auth.Login(ctx, "located", "pw", false, "", "")
	require.NoError(t, err)

	sess, err := env.sessions.Resolve(ctx, res.SessionToken)
	require.NoError(t, err)
	require.Equal(t, domain.SessionAttrs{
		Username:   "located",
		Role:       domain.RoleNameManager,
		EmployeeID: 1, // ULID ids have no numeric form
		LocationID: 7,
	}, sess.Attrs)

	res, err = env.auth.Login(ctx, "floating", "pw", false, "", "")
	require.NoError(t, err)
	sess, err = env.sessions.Resolve(ctx, res.SessionToken)
	require.NoError(t, err)
	require.Equal(t, domain.SessionAttrs{
		Username:   "floating",
		Role:       "User",
		EmployeeID: 1,
		LocationID: 0,
	}, sess.Attrs)
}

func TestLoginTrimsUsername(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "spaced", "pw", userOpts{roleName: domain.RoleNameManager})

	res, err := env.auth.Login(ctx, "  spaced  ", "pw", false, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionToken)
}

func TestTwoFactorEmailFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "pat", "pw-pat", userOpts{roleName: domain.RoleNameManager, twoFactor: true})

	res, err := env.auth.Login(ctx, "pat", "pw-pat", true, "/inventory", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.ChallengeToken)
	require.Empty(t, res.SessionToken, "no session may exist before the code is verified")

	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "pat@example.com", sent[0].To)

	code := extractCode(t, sent[0].Body)

	_, err = env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, "000000", false)
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	done, err := env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, false)
	require.NoError(t, err)
	require.NotEmpty(t, done.SessionToken)
	require.NotEmpty(t, done.RememberToken, "remember-me carries through the challenge")
	require.Equal(t, "/inventory", done.RedirectTo)

	// The challenge is single-use.
	_, err = env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, false)
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)
}

func TestTwoFactorMailFailureAbortsLogin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "undeliverable", "pw", userOpts{roleName: domain.RoleNameManager, twoFactor: true})
	env.mailer.FailWith = context.DeadlineExceeded

	_, err := env.auth.Login(ctx, "undeliverable", "pw", false, "", "")
	require.ErrorIs(t, err, ErrTwoFactorSendFailed)
}

func TestTwoFactorRechecksActiveFlag(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "fired", "pw", userOpts{roleName: domain.RoleNameManager, twoFactor: true})

	res, err := env.auth.Login(ctx, "fired", "pw", false, "", "")
	require.NoError(t, err)

	code := extractCode(t, env.mailer.Sent()[0].Body)

	// Deactivated between password step and code entry.
	require.NoError(t, env.store.Users().SetActive(ctx, u.ID, false))

	_, err = env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, false)
	require.ErrorIs(t, err, ErrInvalidLoginOrInactive)
}

func TestTwoFactorAttemptExhaustionDestroysChallenge(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "fumbler", "pw", userOpts{roleName: domain.RoleNameManager, twoFactor: true})

	res, err := env.auth.Login(ctx, "fumbler", "pw", false, "", "")
	require.NoError(t, err)
	code := extractCode(t, env.mailer.Sent()[0].Body)

	for i := range domain.MaxTwoFactorAttempts {
		_, err = env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, "999999", false)
		if i == domain.MaxTwoFactorAttempts-1 {
			require.ErrorIs(t, err, ErrAccountLockedOut)
		} else {
			require.ErrorIs(t, err, ErrInvalidTwoFactorCode)
		}
	}

	// Even the right code is dead now.
	_, err = env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, false)
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)
}

func TestTwoFactorTOTPEnrolledUserSkipsEmail(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "stockroom", AccountName: "otp@example.com"})
	require.NoError(t, err)

	env.seedUser(t, "otpuser", "pw", userOpts{
		roleName:   domain.RoleNameManager,
		twoFactor:  true,
		totpSecret: key.Secret(),
	})

	res, err := env.auth.Login(ctx, "otpuser", "pw", false, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.ChallengeToken)
	require.Empty(t, env.mailer.Sent(), "TOTP users get no email")

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	done, err := env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, false)
	require.NoError(t, err)
	require.NotEmpty(t, done.SessionToken)
	require.Equal(t, "/", done.RedirectTo)
}

func TestVerifyTwoFactorWithoutEnrollment(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "plain", "pw", userOpts{roleName: domain.RoleNameManager})

	// A challenge row pointing at a non-2FA account must not verify.
	challenge := domain.TwoFactorChallenge{
		ID:        idx.New().String(),
		UserID:    u.ID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, env.store.TwoFactorChallenges().CreateChallenge(ctx, challenge))

	_, err := env.auth.VerifyTwoFactor(ctx, challenge.ID, "123456", false)
	require.ErrorIs(t, err, ErrTwoFactorNotEnabled)
}

func TestTrustedDeviceSkipsSecondFactor(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "regular", "pw", userOpts{roleName: domain.RoleNameManager, twoFactor: true})

	res, err := env.auth.Login(ctx, "regular", "pw", false, "", "")
	require.NoError(t, err)
	code := extractCode(t, env.mailer.Sent()[0].Body)

	done, err := env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, true)
	require.NoError(t, err)
	require.NotEmpty(t, done.SessionToken)
	require.NotEmpty(t, done.TrustedToken)

	// The trusted browser signs straight in: no challenge, no second mail.
	again, err := env.auth.Login(ctx, "regular", "pw", false, "", done.TrustedToken)
	require.NoError(t, err)
	require.Empty(t, again.ChallengeToken)
	require.NotEmpty(t, again.SessionToken)
	require.Equal(t, "/dashboard", again.RedirectTo)
	require.Len(t, env.mailer.Sent(), 1)
}

func TestTrustedDeviceUnknownTokenStillChallenges(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "wary", "pw", userOpts{roleName: domain.RoleNameManager, twoFactor: true})

	res, err := env.auth.Login(ctx, "wary", "pw", false, "", "made-up-token")
	require.NoError(t, err)
	require.NotEmpty(t, res.ChallengeToken)
	require.Empty(t, res.SessionToken)
}

func TestVerifyWithoutRememberLeavesDeviceUntrusted(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "careful", "pw", userOpts{roleName: domain.RoleNameManager, twoFactor: true})

	res, err := env.auth.Login(ctx, "careful", "pw", false, "", "")
	require.NoError(t, err)
	code := extractCode(t, env.mailer.Sent()[0].Body)

	done, err := env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, false)
	require.NoError(t, err)
	require.Empty(t, done.TrustedToken)
}

// extractCode pulls the 6-digit code out of the mail body.
func extractCode(t *testing.T, body string) string {
	t.Helper()
	for i := 0; i+6 <= len(body); i++ {
		code := body[i : i+6]
		digits := true
		for _, c := range code {
			if c < '0' || c > '9' {
				digits = false
				break
			}
		}
		if digits {
			return code
		}
	}
	t.Fatalf("no 6-digit code in mail body: %q", body)
	return ""
}
