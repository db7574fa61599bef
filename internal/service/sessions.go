package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/cryptox"
	"github.com/harlowglass/stockroom/pkg/idx"
	"github.com/harlowglass/stockroom/pkg/jwtx"
)

var ErrNoSession = errors.New("no valid session")

// SessionsService issues and resolves login sessions. The cookie carries an
// opaque token; only its SHA-256 fingerprint is stored, so a leaked database
// cannot be replayed into live sessions.
type SessionsService struct {
	Store       store.Store
	Remember    *jwtx.RememberTokens
	SessionTTL  time.Duration
	RememberTTL time.Duration
}

// Issue creates a session for user and returns the opaque cookie token. The
// session attributes are computed once here and stored together; nothing
// mutates them afterwards.
func (s *SessionsService) Issue(ctx context.Context, user domain.User) (string, domain.Session, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.Session{}, fmt.Errorf("generate session token: %w", err)
	}

	attrs, err := s.attrsFor(ctx, user)
	if err != nil {
		return "", domain.Session{}, err
	}

	now := time.Now()
	sess := domain.Session{
		ID:               idx.New().String(),
		UserID:           user.ID,
		TokenFingerprint: cryptox.FingerprintToken(token),
		Attrs:            attrs,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.SessionTTL),
	}

	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return "", domain.Session{}, fmt.Errorf("persist session: %w", err)
	}
	return token, sess, nil
}

// IssueRemember mints a signed remember-me token for the user.
func (s *SessionsService) IssueRemember(user domain.User) (string, error) {
	return s.Remember.Issue(user.ID, s.RememberTTL)
}

// Resolve returns the live session for a cookie token, or ErrNoSession.
func (s *SessionsService) Resolve(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, ErrNoSession
	}

	sess, err := s.Store.Sessions().GetSessionByFingerprint(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrNoSession
		}
		return domain.Session{}, err
	}

	if sess.Expired(time.Now()) {
		_ = s.Store.Sessions().DeleteSession(ctx, sess.ID)
		return domain.Session{}, ErrNoSession
	}
	return sess, nil
}

// RedeemRemember exchanges a valid remember-me token for a fresh session.
// Inactive users cannot be re-hydrated; their token is simply refused.
func (s *SessionsService) RedeemRemember(ctx context.Context, token string) (string, domain.Session, error) {
	userID, err := s.Remember.Verify(token)
	if err != nil {
		return "", domain.Session{}, ErrNoSession
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.Session{}, ErrNoSession
		}
		return "", domain.Session{}, err
	}
	if !user.IsActive || user.Locked(time.Now()) {
		return "", domain.Session{}, ErrNoSession
	}

	return s.Issue(ctx, user)
}

// Logout removes the session behind a cookie token. Unknown tokens are a
// no-op so logout is always safe to call.
func (s *SessionsService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sess, err := s.Store.Sessions().GetSessionByFingerprint(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.Store.Sessions().DeleteSession(ctx, sess.ID)
}

// attrsFor computes the four attributes a session carries. The employee id
// is the numeric form of the user id where one exists; accounts with
// non-numeric ids fall back to 1, and users without a home location get 0.
func (s *SessionsService) attrsFor(ctx context.Context, user domain.User) (domain.SessionAttrs, error) {
	roleName := "User"
	if user.RoleID != "" {
		if role, err := s.Store.Roles().GetRoleByID(ctx, user.RoleID); err == nil {
			roleName = role.Name
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.SessionAttrs{}, fmt.Errorf("resolve role: %w", err)
		}
	}

	employeeID := int64(1)
	if n, err := strconv.ParseInt(user.ID, 10, 64); err == nil {
		employeeID = n
	}

	var locationID int64
	if user.LocationID != nil {
		locationID = *user.LocationID
	}

	return domain.SessionAttrs{
		Username:   user.Username,
		Role:       roleName,
		EmployeeID: employeeID,
		LocationID: locationID,
	}, nil
}
