package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
	"github.com/harlowglass/stockroom/pkg/idx"
)

var (
	ErrRoleNameRequired = errors.New("Role name is required.")
	ErrRoleNameTaken    = errors.New("A role with that name already exists.")

	// ErrRoleInUse surfaces the FK restriction: a role assigned to users
	// cannot be deleted.
	ErrRoleInUse = errors.New("Role is assigned to one or more users and cannot be deleted.")
)

type RolesService struct {
	Store store.Store
}

// ListAll returns all roles ordered by name.
func (s *RolesService) ListAll(ctx context.Context) ([]domain.Role, error) {
	return s.Store.Roles().ListAll(ctx)
}

// GetRoleByID fetches a role by its ID.
func (s *RolesService) GetRoleByID(ctx context.Context, roleID string) (domain.Role, error) {
	return s.Store.Roles().GetRoleByID(ctx, roleID)
}

// Create adds a new role with the given name.
func (s *RolesService) Create(ctx context.Context, name string) (domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Role{}, ErrRoleNameRequired
	}

	role := domain.Role{
		ID:        idx.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.Store.Roles().CreateRole(ctx, role); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, ErrRoleNameTaken
		}
		return domain.Role{}, err
	}
	return role, nil
}

// Rename changes a role's name.
func (s *RolesService) Rename(ctx context.Context, roleID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrRoleNameRequired
	}

	if err := s.Store.Roles().RenameRole(ctx, roleID, name); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrRoleNameTaken
		}
		return err
	}
	return nil
}

// Delete removes a role. Roles still assigned to users are refused.
func (s *RolesService) Delete(ctx context.Context, roleID string) error {
	if err := s.Store.Roles().DeleteRole(ctx, roleID); err != nil {
		if errors.Is(err, store.ErrRoleInUse) {
			return ErrRoleInUse
		}
		return err
	}
	return nil
}
