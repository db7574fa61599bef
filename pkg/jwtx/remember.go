// Package jwtx issues and verifies the signed remember-me tokens used for
// persistent logins. Tokens are HS256 JWTs carrying only the user ID; the
// server-side session remains the source of truth for everything else.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("jwtx: invalid remember-me token")

type rememberClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

type RememberTokens struct {
	issuer string
	secret []byte
	parser *jwt.Parser
}

func NewRememberTokens(issuer string, secret []byte) *RememberTokens {
	return &RememberTokens{
		issuer: issuer,
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		),
	}
}

// Issue returns a signed token binding the user ID for validFor.
func (t *RememberTokens) Issue(userID string, validFor time.Duration) (string, error) {
	now := time.Now()
	claims := rememberClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validFor)),
		},
		UserID: userID,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses a token and returns the embedded user ID.
func (t *RememberTokens) Verify(token string) (string, error) {
	var claims rememberClaims
	if _, err := t.parser.ParseWithClaims(token, &claims, t.keyFunc); err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

func (t *RememberTokens) keyFunc(_ *jwt.Token) (any, error) {
	return t.secret, nil
}
