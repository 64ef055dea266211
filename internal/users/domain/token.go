package domain

import (
	"time"

	"github.com/aussiebroadwan/haulage/pkg/jwtx"
)

// TokenPair is an access token and its refresh token, always minted
// together.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IsZero reports whether the pair carries no tokens.
func (p TokenPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// DecodedToken is a token whose signature checked out. Nothing about it
// says the token is still in date; compare ExpiresAt yourself.
type DecodedToken struct {
	Subject   string
	UserID    int64
	Roles     []string
	Use       jwtx.TokenUse
	ID        string
	IssuedAt  time.Time
	ExpiresAt *time.Time // nil when the token has no exp claim

	Claims jwtx.Claims
}

// ExpiredAt reports whether the token is expired at now. A missing exp
// counts as expired.
func (d DecodedToken) ExpiredAt(now time.Time) bool {
	return d.ExpiresAt == nil || !d.ExpiresAt.After(now)
}

// Identity rebuilds the identity the token was minted for.
func (d DecodedToken) Identity() Identity {
	return Identity{ID: d.UserID, Username: d.Subject, Roles: d.Roles}
}
