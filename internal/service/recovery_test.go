package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harlowglass/stockroom/internal/domain"
)

func TestRecoveryBeginGates(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.recovery.Begin(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrNoActiveUserForEmail)

	env.seedUser(t, "gone", "pw", userOpts{inactive: true, question: "Pet?", answer: "Rex"})
	_, _, err = env.recovery.Begin(ctx, "gone@example.com")
	require.ErrorIs(t, err, ErrNoActiveUserForEmail)

	env.seedUser(t, "noq", "pw", userOpts{roleName: domain.RoleNameManager})
	_, _, err = env.recovery.Begin(ctx, "noq@example.com")
	require.ErrorIs(t, err, ErrSecurityQuestionUnset)

	u := env.seedUser(t, "withq", "pw", userOpts{question: "Favourite colour?", answer: "Blue"})
	userID, question, err := env.recovery.Begin(ctx, "withq@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, userID)
	require.Equal(t, "Favourite colour?", question)
}

func TestRecoveryAnswerComparison(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	u := env.seedUser(t, "quizzed", "pw", userOpts{question: "Favourite colour?", answer: "Blue"})

	// Case-insensitive...
	require.NoError(t, env.recovery.VerifyAnswer(ctx, u.ID, "Blue"))
	require.NoError(t, env.recovery.VerifyAnswer(ctx, u.ID, "blue"))
	require.NoError(t, env.recovery.VerifyAnswer(ctx, u.ID, "BLUE"))

	// ...but whitespace-sensitive, and wrong answers are refused.
	require.ErrorIs(t, env.recovery.VerifyAnswer(ctx, u.ID, " blue"), ErrIncorrectAnswer)
	require.ErrorIs(t, env.recovery.VerifyAnswer(ctx, u.ID, "blue "), ErrIncorrectAnswer)
	require.ErrorIs(t, env.recovery.VerifyAnswer(ctx, u.ID, "red"), ErrIncorrectAnswer)
}

func TestResetPasswordRotatesCredentialAndRevokesSessions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "resetme", "old-password", userOpts{
		roleName: domain.RoleNameManager,
		question: "Pet?",
		answer:   "Rex",
	})

	res, err := env.auth.Login(ctx, "resetme", "old-password", false, "", "")
	require.NoError(t, err)

	userID, _, err := env.recovery.Begin(ctx, "resetme@example.com")
	require.NoError(t, err)

	require.ErrorIs(t,
		env.recovery.ResetPassword(ctx, userID, "wrong", "new-password"),
		ErrIncorrectAnswer)

	require.NoError(t, env.recovery.ResetPassword(ctx, userID, "rex", "new-password"))

	// The pre-reset session is dead.
	_, err = env.sessions.Resolve(ctx, res.SessionToken)
	require.ErrorIs(t, err, ErrNoSession)

	_, err = env.auth.Login(ctx, "resetme", "old-password", false, "", "")
	require.ErrorIs(t, err, ErrInvalidLogin)

	_, err = env.auth.Login(ctx, "resetme", "new-password", false, "", "")
	require.NoError(t, err)
}

func TestResetPasswordForgetsTrustedDevices(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedUser(t, "twofer", "old-password", userOpts{
		roleName:  domain.RoleNameManager,
		question:  "Pet?",
		answer:    "Rex",
		twoFactor: true,
	})

	res, err := env.auth.Login(ctx, "twofer", "old-password", false, "", "")
	require.NoError(t, err)
	code := extractCode(t, env.mailer.Sent()[0].Body)

	done, err := env.auth.VerifyTwoFactor(ctx, res.ChallengeToken, code, true)
	require.NoError(t, err)
	require.NotEmpty(t, done.TrustedToken)

	userID, _, err := env.recovery.Begin(ctx, "twofer@example.com")
	require.NoError(t, err)
	require.NoError(t, env.recovery.ResetPassword(ctx, userID, "rex", "new-password"))

	// The previously trusted browser is challenged again.
	again, err := env.auth.Login(ctx, "twofer", "new-password", false, "", done.TrustedToken)
	require.NoError(t, err)
	require.NotEmpty(t, again.ChallengeToken)
	require.Empty(t, again.SessionToken)
}
