package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes. Access tokens stay short so a leaked one is only
// useful briefly; refresh tokens live long enough to keep a shift logged in.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenUse distinguishes access tokens from refresh tokens. Both are signed
// by the same keys, so the claim is the only thing stopping one being
// presented where the other is expected.
type TokenUse string

const (
	UseAccess  TokenUse = "access"
	UseRefresh TokenUse = "refresh"
)

// Claims are the token claims shared by every haulage service. The subject
// is always the username.
type Claims struct {
	jwt.RegisteredClaims

	// Numeric user ID
	UID int64 `json:"uid,omitempty"`

	// Granted role names, e.g. ["admin", "dispatcher"]
	Roles []string `json:"roles,omitempty"`

	Use TokenUse `json:"use,omitempty"`
}

// NewClaims builds claims for a token issued at now that lives for ttl.
func NewClaims(use TokenUse, subject string, uid int64, roles []string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		UID:   uid,
		Roles: slices.Clone(roles),
		Use:   use,
	}
}

// NewJTI returns a random identifier for the "jti" claim. Two tokens minted
// in the same second for the same user still differ because of it.
func NewJTI() string {
	return uuid.NewString()
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ExpiredAt reports whether the token is expired at now. A token without an
// exp claim counts as expired, and so does one expiring exactly at now.
func (c *Claims) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !c.ExpiresAt.After(now)
}

// ValidateTimeAt checks exp and nbf against now, allowing leeway for skew
// on both sides.
func (c *Claims) ValidateTimeAt(now time.Time, leeway time.Duration) error {
	if c.ExpiredAt(now.Add(-leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Add(leeway).Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}

// HasRole reports whether role was granted.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}
