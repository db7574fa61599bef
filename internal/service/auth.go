package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/cryptox"
	"github.com/harlowglass/stockroom/pkg/idx"
	"github.com/harlowglass/stockroom/pkg/mailx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

// Login failure errors. The messages are shown to users verbatim, so keep
// them stable.
var (
	ErrInvalidLoginOrInactive = errors.New("Invalid login attempt or user is inactive.")
	ErrAccountLockedOut       = errors.New("User account is locked out.")
	ErrInvalidLogin           = errors.New("Invalid login attempt.")
	ErrTwoFactorSendFailed    = errors.New("Failed to send 2FA code. Please try again later.")
	ErrTwoFactorNotEnabled    = errors.New("2FA is not enabled for this user.")
	ErrInvalidTwoFactorCode   = errors.New("Invalid 2FA code.")
)

const twoFactorCodeDigits = 6

// AuthService drives the login state machine: password check, lockout
// accounting, the optional second-factor step and final session issuance.
type AuthService struct {
	Store    store.Store
	Sessions *SessionsService
	Mailer   mailx.Mailer

	MaxLoginAttempts int
	LockoutFor       time.Duration
	ChallengeTTL     time.Duration
	TrustDeviceFor   time.Duration
}

// LoginResult is the outcome of a successful credential check. Exactly one
// of ChallengeToken or SessionToken is set: a challenge token means the
// caller must complete the second factor before a session exists.
type LoginResult struct {
	ChallengeToken string

	SessionToken  string
	RememberToken string
	TrustedToken  string
	RedirectTo    string
}

// Login validates credentials and either signs the user in or opens a
// two-factor challenge. trustedDevice is the browser's trusted-device cookie
// token, if any; a recognized one skips the challenge. returnURL, when
// non-empty, wins over the role-based landing page once sign-in completes.
func (s *AuthService) Login(ctx context.Context, username, password string, rememberMe bool, returnURL, trustedDevice string) (LoginResult, error) {
	log := slogx.FromContext(ctx)
	username = strings.TrimSpace(username)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidLoginOrInactive
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return LoginResult{}, ErrInvalidLoginOrInactive
	}

	if user.Locked(time.Now()) {
		return LoginResult{}, ErrAccountLockedOut
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return LoginResult{}, fmt.Errorf("verify password: %w", err)
		}

		failures, recErr := s.Store.Users().RecordFailedLogin(ctx, user.ID,
			s.MaxLoginAttempts, time.Now().Add(s.LockoutFor))
		if recErr != nil {
			return LoginResult{}, fmt.Errorf("record failed login: %w", recErr)
		}
		log.Warn("login failed", "username", username, "failures", failures)
		return LoginResult{}, ErrInvalidLogin
	}

	// A valid password resets the failure counter even when a second factor
	// is still outstanding.
	if err := s.Store.Users().ClearLoginFailures(ctx, user.ID); err != nil {
		return LoginResult{}, fmt.Errorf("clear login failures: %w", err)
	}

	if user.TwoFactorEnabled {
		if s.deviceTrusted(ctx, user.ID, trustedDevice) {
			log.Info("second factor skipped for trusted device", "username", username)
			return s.completeLogin(ctx, user, rememberMe, returnURL, "")
		}

		token, err := s.openChallenge(ctx, user, rememberMe, returnURL)
		if err != nil {
			return LoginResult{}, err
		}
		log.Info("two-factor challenge opened", "username", username)
		return LoginResult{ChallengeToken: token}, nil
	}

	// No second factor: the role's landing page is the fallback target.
	return s.completeLogin(ctx, user, rememberMe, returnURL, "")
}

// openChallenge records a pending second-factor step. Users enrolled with an
// authenticator app validate against their TOTP secret; everyone else gets a
// one-time code by email. A mail failure aborts the challenge so the user
// isn't stranded on a code entry page for a code that never arrived.
func (s *AuthService) openChallenge(ctx context.Context, user domain.User, rememberMe bool, returnURL string) (string, error) {
	challenge := domain.TwoFactorChallenge{
		ID:         idx.New().String(),
		UserID:     user.ID,
		RememberMe: rememberMe,
		ReturnURL:  returnURL,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(s.ChallengeTTL),
	}

	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		code, err := cryptox.GenerateNumericCode(twoFactorCodeDigits)
		if err != nil {
			return "", fmt.Errorf("generate 2fa code: %w", err)
		}
		challenge.CodeFingerprint = cryptox.FingerprintToken(code)

		body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
			code, int(s.ChallengeTTL.Minutes()))
		if err := s.Mailer.Send(ctx, user.Email, "Your sign-in code", body); err != nil {
			slogx.FromContext(ctx).Error("2fa mail failed", "error", err)
			return "", ErrTwoFactorSendFailed
		}
	}

	if err := s.Store.TwoFactorChallenges().CreateChallenge(ctx, challenge); err != nil {
		return "", fmt.Errorf("persist challenge: %w", err)
	}
	return challenge.ID, nil
}

// deviceTrusted reports whether the presented trusted-device token belongs
// to the user and has not expired. Lookup failures just mean the challenge
// runs as normal.
func (s *AuthService) deviceTrusted(ctx context.Context, userID, token string) bool {
	if token == "" {
		return false
	}
	_, err := s.Store.TrustedDevices().GetTrustedDevice(ctx, userID, cryptox.FingerprintToken(token))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slogx.FromContext(ctx).Error("trusted device lookup failed", "error", err)
	}
	return err == nil
}

// VerifyTwoFactor completes a pending challenge. The account's active flag
// is checked again here: a user deactivated between the password step and
// the code entry must not gain a session. With rememberDevice set, success
// also enrolls the browser so its next login skips the challenge.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, challengeToken, code string, rememberDevice bool) (LoginResult, error) {
	challenges := s.Store.TwoFactorChallenges()

	challenge, err := challenges.GetChallenge(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrInvalidTwoFactorCode
		}
		return LoginResult{}, fmt.Errorf("lookup challenge: %w", err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		_ = challenges.DeleteChallenge(ctx, challenge.ID)
		return LoginResult{}, ErrInvalidLoginOrInactive
	}
	if !user.TwoFactorEnabled {
		_ = challenges.DeleteChallenge(ctx, challenge.ID)
		return LoginResult{}, ErrTwoFactorNotEnabled
	}

	if challenge.Attempts >= domain.MaxTwoFactorAttempts {
		_ = challenges.DeleteChallenge(ctx, challenge.ID)
		return LoginResult{}, ErrAccountLockedOut
	}

	var valid bool
	if user.TOTPSecret != nil && *user.TOTPSecret != "" {
		valid = totp.Validate(code, *user.TOTPSecret)
	} else {
		valid = challenge.CodeFingerprint != "" &&
			cryptox.FingerprintToken(code) == challenge.CodeFingerprint
	}

	if !valid {
		updated, incErr := challenges.IncrementChallengeAttempts(ctx, challenge.ID)
		if incErr == nil && updated.Attempts >= domain.MaxTwoFactorAttempts {
			_ = challenges.DeleteChallenge(ctx, challenge.ID)
			return LoginResult{}, ErrAccountLockedOut
		}
		return LoginResult{}, ErrInvalidTwoFactorCode
	}

	if err := challenges.DeleteChallenge(ctx, challenge.ID); err != nil {
		return LoginResult{}, fmt.Errorf("consume challenge: %w", err)
	}

	result, err := s.completeLogin(ctx, user, challenge.RememberMe, challenge.ReturnURL, "/")
	if err != nil {
		return LoginResult{}, err
	}

	if rememberDevice {
		trusted, err := s.trustDevice(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		result.TrustedToken = trusted
	}
	return result, nil
}

// trustDevice mints the trusted-device cookie token and stores its
// fingerprint.
func (s *AuthService) trustDevice(ctx context.Context, userID string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate trusted device token: %w", err)
	}

	now := time.Now()
	device := domain.TrustedDevice{
		ID:               idx.New().String(),
		UserID:           userID,
		TokenFingerprint: cryptox.FingerprintToken(token),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.TrustDeviceFor),
	}
	if err := s.Store.TrustedDevices().CreateTrustedDevice(ctx, device); err != nil {
		return "", fmt.Errorf("persist trusted device: %w", err)
	}
	return token, nil
}

// completeLogin issues the session once every gate has passed. returnURL
// wins when set; otherwise fallback is used, and an empty fallback means the
// role's own landing page.
func (s *AuthService) completeLogin(ctx context.Context, user domain.User, rememberMe bool, returnURL, fallback string) (LoginResult, error) {
	token, sess, err := s.Sessions.Issue(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	redirect := fallback
	if redirect == "" {
		redirect = domain.KindOf(sess.Attrs.Role).LandingPath()
	}
	if returnURL != "" {
		redirect = returnURL
	}

	result := LoginResult{
		SessionToken: token,
		RedirectTo:   redirect,
	}

	if rememberMe {
		remember, err := s.Sessions.IssueRemember(user)
		if err != nil {
			return LoginResult{}, fmt.Errorf("issue remember token: %w", err)
		}
		result.RememberToken = remember
	}

	slogx.FromContext(ctx).Info("login succeeded",
		"username", user.Username,
		"role", sess.Attrs.Role,
	)
	return result, nil
}
