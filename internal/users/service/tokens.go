package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
)

// TokenIssuer mints and decodes the signed token pairs handed to clients.
// It keeps no state about issued tokens: a token is good for as long as its
// signature checks out and its exp has not passed.
type TokenIssuer struct {
	Keys       *jwtx.KeyManager
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clock.Clock
}

// NewTokenIssuer fills in default lifetimes and checks that access tokens
// expire before refresh tokens.
func NewTokenIssuer(keys *jwtx.KeyManager, issuer string, accessTTL, refreshTTL time.Duration, clk clock.Clock) (*TokenIssuer, error) {
	if keys == nil {
		return nil, errors.New("service: token issuer needs a key manager")
	}
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	if accessTTL >= refreshTTL {
		return nil, fmt.Errorf("service: access ttl %s must be shorter than refresh ttl %s", accessTTL, refreshTTL)
	}
	if clk == nil {
		clk = clock.System
	}
	return &TokenIssuer{
		Keys:       keys,
		Issuer:     issuer,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		Clock:      clk,
	}, nil
}

// Mint signs a fresh access and refresh token for id. Both share the
// subject, issue time and roles.
func (t *TokenIssuer) Mint(id domain.Identity) (domain.TokenPair, error) {
	if id.Username == "" {
		return domain.TokenPair{}, errors.New("service: cannot mint tokens without a subject")
	}
	now := t.Clock.Now()

	access := jwtx.NewClaims(jwtx.UseAccess, id.Username, id.ID, id.Roles, t.AccessTTL, t.Issuer, now)
	refresh := jwtx.NewClaims(jwtx.UseRefresh, id.Username, id.ID, id.Roles, t.RefreshTTL, t.Issuer, now)

	accessToken, err := t.Keys.Sign(access)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := t.Keys.Sign(refresh)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  access.ExpiresAt.Time.UTC(),
		RefreshExpiresAt: refresh.ExpiresAt.Time.UTC(),
	}, nil
}

// Decode checks the signature and structure of token and returns its
// claims. It does not look at exp.
func (t *TokenIssuer) Decode(token string) (domain.DecodedToken, error) {
	c, err := t.Keys.Decoder.Decode(token)
	if err != nil {
		return domain.DecodedToken{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	d := domain.DecodedToken{
		Subject: c.Subject,
		UserID:  c.UID,
		Roles:   c.Roles,
		Use:     c.Use,
		ID:      c.ID,
		Claims:  c,
	}
	if c.IssuedAt != nil {
		d.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.Time.UTC()
		d.ExpiresAt = &exp
	}
	return d, nil
}
