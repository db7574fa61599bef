package sqlite

import (
	"context"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
)

type trustedRepo struct {
	db dbtx
}

func (r *trustedRepo) CreateTrustedDevice(ctx context.Context, d domain.TrustedDevice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trusted_devices (id, user_id, token_fingerprint, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.TokenFingerprint, d.CreatedAt.UTC(), d.ExpiresAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *trustedRepo) GetTrustedDevice(ctx context.Context, userID, fingerprint string) (domain.TrustedDevice, error) {
	var d domain.TrustedDevice
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_fingerprint, created_at, expires_at
		FROM trusted_devices
		WHERE user_id = ? AND token_fingerprint = ? AND expires_at > ?`,
		userID, fingerprint, time.Now().UTC()).
		Scan(&d.ID, &d.UserID, &d.TokenFingerprint, &d.CreatedAt, &d.ExpiresAt)
	if err != nil {
		return domain.TrustedDevice{}, mapNotFound(err)
	}
	return d, nil
}

func (r *trustedRepo) DeleteUserTrustedDevices(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trusted_devices WHERE user_id = ?`, userID)
	return err
}

func (r *trustedRepo) DeleteExpiredTrustedDevices(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM trusted_devices WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
