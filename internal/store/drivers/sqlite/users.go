package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
	"github.com/harlowglass/stockroom/internal/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, email, display_name, phone_number, password_hash,
	role_id, is_active, location_id, security_question, security_answer,
	two_factor_enabled, totp_secret, failed_logins, locked_until, created_at, updated_at`

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var (
		u                domain.User
		roleID           sql.NullString
		locationID       sql.NullInt64
		securityQuestion sql.NullString
		securityAnswer   sql.NullString
		totpSecret       sql.NullString
		lockedUntil      sql.NullTime
	)

	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PhoneNumber, &u.PasswordHash,
		&roleID, &u.IsActive, &locationID, &securityQuestion, &securityAnswer,
		&u.TwoFactorEnabled, &totpSecret, &u.FailedLogins, &lockedUntil,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	if roleID.Valid {
		u.RoleID = roleID.String
	}
	u.LocationID = mapNullInt64Ptr(locationID)
	u.SecurityQuestion = mapNullStringPtr(securityQuestion)
	u.SecurityAnswer = mapNullStringPtr(securityAnswer)
	u.TOTPSecret = mapNullStringPtr(totpSecret)
	u.LockedUntil = mapNullTimePtr(lockedUntil)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return r.scanUser(row)
}

func (r *usersRepo) GetActiveUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND is_active = 1`, email)
	return r.scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, username, email, display_name, phone_number, password_hash,
			role_id, is_active, location_id, security_question, security_answer,
			two_factor_enabled, totp_secret, failed_logins, locked_until,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		u.ID, u.Username, u.Email, u.DisplayName, u.PhoneNumber, u.PasswordHash,
		nullIfEmpty(u.RoleID), u.IsActive, mapOptionalInt64(u.LocationID),
		mapOptionalString(u.SecurityQuestion), mapOptionalString(u.SecurityAnswer),
		u.TwoFactorEnabled, mapOptionalString(u.TOTPSecret),
		now, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) RecordFailedLogin(ctx context.Context, userID string, maxAttempts int, lockedUntil time.Time) (int, error) {
	var failures int
	err := r.db.QueryRowContext(ctx,
		`SELECT failed_logins FROM users WHERE id = ?`, userID).Scan(&failures)
	if err != nil {
		return 0, mapNotFound(err)
	}

	failures++
	if failures >= maxAttempts {
		_, err = r.db.ExecContext(ctx, `
			UPDATE users SET failed_logins = 0, locked_until = ?, updated_at = ? WHERE id = ?`,
			lockedUntil.UTC(), time.Now().UTC(), userID)
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE users SET failed_logins = ?, updated_at = ? WHERE id = ?`,
			failures, time.Now().UTC(), userID)
	}
	if err != nil {
		return 0, err
	}
	return failures, nil
}

func (r *usersRepo) ClearLoginFailures(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET failed_logins = 0, locked_until = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
