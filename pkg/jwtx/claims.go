package jwtx

import (
	"slices"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for a login session.
const (
	// DefaultAccessTokenTTL is the default lifetime for access tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	// Must always be longer than the access lifetime.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenType distinguishes the two halves of a token pair. A token of one type
// is never accepted where the other is expected.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims is the signed payload carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Role of the principal at issue time, e.g. "admin" or "user".
	Role string `json:"role"`

	// Permissions granted to the principal ("workflows:write", "*").
	Permissions []string `json:"permissions"`

	// Type is either "access" or "refresh".
	Type TokenType `json:"type"`
}

// NewClaims builds claims for a single token of the given type.
func NewClaims(
	subject, role string,
	permissions []string,
	typ TokenType,
	issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Role:        role,
		Permissions: slices.Clone(permissions),
		Type:        typ,
	}
}

// NewJTI returns a ULID for the "jti" claim. Two tokens issued to the same
// subject within the same second must still differ, so the fingerprint of one
// never collides with the other.
func NewJTI() string {
	return idx.New().String()
}

// IssuedAtTime returns iat or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns exp or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Remaining is how long the token stays valid after now. Never negative.
func (c *Claims) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAtTime().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrInvalid
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) at the given instant.
// A token without exp is rejected as invalid rather than treated as eternal.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrInvalid
	}

	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}

	return nil
}
