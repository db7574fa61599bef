package sqlite

import (
	"context"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, token_fingerprint, username, role, employee_id,
			location_id, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.TokenFingerprint,
		s.Attrs.Username, s.Attrs.Role, s.Attrs.EmployeeID, s.Attrs.LocationID,
		s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByFingerprint(ctx context.Context, fingerprint string) (domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_fingerprint, username, role, employee_id,
		       location_id, created_at, expires_at
		FROM sessions WHERE token_fingerprint = ?`, fingerprint).
		Scan(&s.ID, &s.UserID, &s.TokenFingerprint,
			&s.Attrs.Username, &s.Attrs.Role, &s.Attrs.EmployeeID, &s.Attrs.LocationID,
			&s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (r *sessionsRepo) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
