// Package auth validates session credentials for the realtime service.
//
// The marketplace API issues HMAC-signed JWTs; this package verifies them
// against the shared secret and extracts the marketplace identity. A
// connection is never registered before verification succeeds.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/saiyanhack13/geopressci-realtime/pkg/presence"
)

// ErrInvalidToken is returned for any credential that does not verify:
// bad signature, expired, malformed, or missing required claims.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the decoded marketplace identity carried by a session token.
type Identity struct {
	UserID string
	Role   presence.Role
}

// sessionClaims is the claim set the marketplace API places in its tokens.
type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier performs pure, stateless validation of session tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify decodes and validates a token, returning the identity it carries.
func (v *Verifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	role, err := presence.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: claims.Subject, Role: role}, nil
}
