package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/cryptox"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

// Recovery failure errors, shown to users verbatim.
var (
	ErrNoActiveUserForEmail  = errors.New("No active user found with that email address.")
	ErrSecurityQuestionUnset = errors.New("Security question not set for this account. Contact support.")
	ErrIncorrectAnswer       = errors.New("Incorrect security answer.")
)

// RecoveryService implements security-question password recovery. Only
// active accounts can be recovered, and an account without a stored question
// is parked until support sets one.
type RecoveryService struct {
	Store store.Store
}

// Begin looks up an active account by email and returns its security
// question.
func (s *RecoveryService) Begin(ctx context.Context, email string) (userID, question string, err error) {
	user, err := s.Store.Users().GetActiveUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", ErrNoActiveUserForEmail
		}
		return "", "", fmt.Errorf("lookup user by email: %w", err)
	}

	if user.SecurityQuestion == nil || *user.SecurityQuestion == "" {
		return "", "", ErrSecurityQuestionUnset
	}
	return user.ID, *user.SecurityQuestion, nil
}

// VerifyAnswer checks the stored answer. The comparison is case-insensitive
// but whitespace-sensitive: " blue" does not match "blue".
func (s *RecoveryService) VerifyAnswer(ctx context.Context, userID, answer string) error {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return err
	}

	if user.SecurityAnswer == nil || !strings.EqualFold(*user.SecurityAnswer, answer) {
		return ErrIncorrectAnswer
	}
	return nil
}

// ResetPassword re-verifies the answer, stores the new hash and revokes
// every live session and trusted device the account holds.
func (s *RecoveryService) ResetPassword(ctx context.Context, userID, answer, newPassword string) error {
	if err := s.VerifyAnswer(ctx, userID, answer); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := tx.Users().ClearLoginFailures(ctx, userID); err != nil {
			return fmt.Errorf("clear failures: %w", err)
		}
		if err := tx.Sessions().DeleteUserSessions(ctx, userID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		if err := tx.TrustedDevices().DeleteUserTrustedDevices(ctx, userID); err != nil {
			return fmt.Errorf("forget trusted devices: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password reset completed", "user_id", userID)
	return nil
}

// activeUser loads a user for recovery, treating missing and inactive
// accounts identically.
func (s *RecoveryService) activeUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNoActiveUserForEmail
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return domain.User{}, ErrNoActiveUserForEmail
	}
	return user, nil
}
