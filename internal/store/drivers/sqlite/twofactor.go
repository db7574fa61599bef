package sqlite

import (
	"context"
	"time"

	"github.com/harlowglass/stockroom/internal/domain"
)

type challengesRepo struct {
	db dbtx
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.TwoFactorChallenge) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO two_factor_challenges (
			id, user_id, code_fingerprint, remember_me, return_url, attempts,
			created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.CodeFingerprint, c.RememberMe, c.ReturnURL, c.Attempts,
		c.CreatedAt.UTC(), c.ExpiresAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	var c domain.TwoFactorChallenge
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, code_fingerprint, remember_me, return_url, attempts,
		       created_at, expires_at
		FROM two_factor_challenges
		WHERE id = ? AND expires_at > ?`, token, time.Now().UTC()).
		Scan(&c.ID, &c.UserID, &c.CodeFingerprint, &c.RememberMe, &c.ReturnURL,
			&c.Attempts, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return domain.TwoFactorChallenge{}, mapNotFound(err)
	}
	return c, nil
}

func (r *challengesRepo) IncrementChallengeAttempts(ctx context.Context, token string) (domain.TwoFactorChallenge, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE two_factor_challenges SET attempts = attempts + 1 WHERE id = ?`, token)
	if err != nil {
		return domain.TwoFactorChallenge{}, err
	}
	if err := requireRowAffected(res); err != nil {
		return domain.TwoFactorChallenge{}, err
	}
	return r.GetChallenge(ctx, token)
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE id = ?`, token)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM two_factor_challenges WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
