// Package auth handles both kinds of credentials the service accepts.
//
// MEMBER TOKENS:
// Choir members log in with a short code and get back an opaque random
// token (token.go). The token is stored on the member's row; every request
// presents it (extract.go) and RequireMember looks it up. There is no expiry:
// a token lives until the next login or an explicit logout.
//
// ADMIN TOKENS:
// Administrators authenticate with a signed JWT minted offline by the
// `admin-token` command. Nothing about an admin is stored in the database;
// the signature and expiry are the whole check.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<admin>","iss":"choirhub-admin","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminIssuer = "choirhub-admin"

// DefaultAdminTTL is the lifetime of an admin token when none is requested.
const DefaultAdminTTL = 12 * time.Hour

// AdminTokens issues and validates admin JWTs.
type AdminTokens struct {
	secret []byte
}

// NewAdminTokens creates an AdminTokens with the given HMAC secret.
// The secret should be at least 32 bytes of random data in production.
// Example: ADMIN_JWT_SECRET=$(openssl rand -hex 32)
func NewAdminTokens(secret string) (*AdminTokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: admin JWT secret must be at least 16 characters")
	}
	return &AdminTokens{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Issue signs a token for subject that expires after ttl.
func (s *AdminTokens) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("auth: admin token subject must not be empty")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    adminIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies an admin JWT and returns its subject.
//
// The algorithm is pinned to HS256 so a token claiming "none" or an
// asymmetric algorithm is rejected before the signature is looked at.
func (s *AdminTokens) Validate(tokenStr string) (string, error) {
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
		jwt.WithIssuer(adminIssuer),
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
