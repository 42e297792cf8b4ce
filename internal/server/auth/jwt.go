// Package auth implements the two credential primitives of the server: bcrypt
// password hashing and signed, time-limited JWT access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and verifies HMAC-signed access tokens. The secret and
// algorithm are fixed for the lifetime of the process.
type TokenManager struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewTokenManager validates the signing configuration once, at startup.
// Only HMAC algorithms are accepted: the secret is a shared key.
func NewTokenManager(secret []byte, algorithm string) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	return &TokenManager{secret: secret, method: method, now: time.Now}, nil
}

// Issue signs a token for subject that expires ttl from now.
func (m *TokenManager) Issue(subject string, ttl time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(m.method, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})

	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify checks signature, algorithm and expiry and returns the subject.
// Every failure, whatever its cause, is reported as common.ErrTokenInvalid.
func (m *TokenManager) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrTokenInvalid
	}

	return claims.Subject, nil
}
