package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/cryptox"
	"github.com/harlowglass/stockroom/pkg/idx"
	"github.com/harlowglass/stockroom/pkg/slogx"
)

var (
	ErrUsernameTaken      = errors.New("That username is already taken.")
	ErrEmailTaken         = errors.New("That email address is already registered.")
	ErrRegistrationFields = errors.New("Username, email and password are required.")
)

// UsersService covers account registration. New accounts start active with
// no role; they see the manager dashboard with the fallback "User" role
// until an admin assigns one.
type UsersService struct {
	Store store.Store
}

type RegisterParams struct {
	Username         string
	Email            string
	DisplayName      string
	PhoneNumber      string
	Password         string
	SecurityQuestion string
	SecurityAnswer   string
	LocationID       *int64
}

func (s *UsersService) Register(ctx context.Context, p RegisterParams) (domain.User, error) {
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)
	if p.Username == "" || p.Email == "" || p.Password == "" {
		return domain.User{}, ErrRegistrationFields
	}

	hash, err := cryptox.HashPassword(p.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     p.Username,
		Email:        p.Email,
		DisplayName:  strings.TrimSpace(p.DisplayName),
		PhoneNumber:  strings.TrimSpace(p.PhoneNumber),
		PasswordHash: hash,
		IsActive:     true,
		LocationID:   p.LocationID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if q := strings.TrimSpace(p.SecurityQuestion); q != "" {
		user.SecurityQuestion = &q
		answer := p.SecurityAnswer
		user.SecurityAnswer = &answer
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Username and email are both unique; report whichever collided.
			if _, lookupErr := s.Store.Users().GetUserByUsername(ctx, user.Username); lookupErr == nil {
				return domain.User{}, ErrUsernameTaken
			}
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", "username", user.Username)
	return user, nil
}
