// Package auth issues and checks the signed tokens that bind a caller to a
// session.
//
// A session token is an HS256 JWT whose subject is the session ID:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"<sessionID>","iss":"snippet-runner","exp":...}
//
// The server never stores tokens. Possession of a valid token for a session
// is what allows running snippets in it and reading its results.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "snippet-runner"

// DefaultTokenTTL is used when no lifetime is configured.
const DefaultTokenTTL = 24 * time.Hour

// TokenService signs and validates session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; a non-positive ttl selects DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate issues a token for sessionID with the configured lifetime.
func (s *TokenService) Generate(sessionID string) (string, error) {
	return s.GenerateWithDuration(sessionID, s.ttl)
}

// GenerateWithDuration issues a token that expires after d.
func (s *TokenService) GenerateWithDuration(sessionID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns the session ID it was issued for.
// Only HS256 tokens from this issuer with an expiry are accepted.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
