package sqlite

import (
	"context"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM roles WHERE id = ?`, id).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM roles WHERE name = ?`, name).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		role.ID, role.Name, now, now)
	return mapConstraint(err)
}

func (r *rolesRepo) RenameRole(ctx context.Context, roleID, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE roles SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), roleID)
	if err != nil {
		return mapConstraint(err)
	}
	return requireRowAffected(res)
}

func (r *rolesRepo) DeleteRole(ctx context.Context, roleID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, roleID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.ErrRoleInUse
		}
		return err
	}
	return requireRowAffected(res)
}
