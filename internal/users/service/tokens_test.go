package service_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/haulage/internal/users/domain"
	"github.com/aussiebroadwan/haulage/internal/users/service"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestMintDecodeRoundTrip(t *testing.T) {
	e := newEnv(t)
	id := domain.Identity{ID: 7, Username: "alice", Roles: []string{"dispatcher"}}

	pair, err := e.tokens.Mint(id)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.True(t, pair.AccessExpiresAt.Before(pair.RefreshExpiresAt))
	require.Equal(t, t0.Add(15*time.Minute), pair.AccessExpiresAt)
	require.Equal(t, t0.Add(7*24*time.Hour), pair.RefreshExpiresAt)

	access, err := e.tokens.Decode(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", access.Subject)
	require.EqualValues(t, 7, access.UserID)
	require.Equal(t, []string{"dispatcher"}, access.Roles)
	require.Equal(t, jwtx.UseAccess, access.Use)
	require.Equal(t, t0, access.IssuedAt)
	require.NotEmpty(t, access.ID)

	refresh, err := e.tokens.Decode(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, access.Subject, refresh.Subject)
	require.Equal(t, jwtx.UseRefresh, refresh.Use)
	require.True(t, access.ExpiresAt.Before(*refresh.ExpiresAt))
	require.Equal(t, id, refresh.Identity())
}

func TestDecodeIgnoresExpiry(t *testing.T) {
	e := newEnv(t)
	pair, err := e.tokens.Mint(domain.Identity{ID: 1, Username: "alice"})
	require.NoError(t, err)

	e.clock.Advance(30 * 24 * time.Hour)
	d, err := e.tokens.Decode(pair.AccessToken)
	require.NoError(t, err)
	require.True(t, d.ExpiredAt(e.clock.Now()))
}

func TestDecodeRejectsTampering(t *testing.T) {
	e := newEnv(t)
	pair, err := e.tokens.Mint(domain.Identity{ID: 1, Username: "alice"})
	require.NoError(t, err)

	other := newEnv(t)
	foreign, err := other.tokens.Mint(domain.Identity{ID: 1, Username: "alice"})
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":         "not-a-token",
		"empty":           "",
		"truncated":       pair.AccessToken[:len(pair.AccessToken)-4],
		"flipped payload": flipPayload(pair.AccessToken),
		"foreign key":     foreign.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.tokens.Decode(tok)
			require.ErrorIs(t, err, service.ErrDecode)
		})
	}
}

// flipPayload swaps one character inside the claims segment.
func flipPayload(tok string) string {
	b := []byte(tok)
	for i := range b {
		if b[i] == '.' {
			j := i + 5
			if b[j] == 'A' {
				b[j] = 'B'
			} else {
				b[j] = 'A'
			}
			break
		}
	}
	return string(b)
}

func TestMintRequiresSubject(t *testing.T) {
	e := newEnv(t)
	_, err := e.tokens.Mint(domain.Identity{ID: 1})
	require.Error(t, err)
}

func TestNewTokenIssuer(t *testing.T) {
	e := newEnv(t)

	_, err := service.NewTokenIssuer(e.keys, testIssuer, time.Hour, time.Hour, e.clock)
	require.ErrorContains(t, err, "must be shorter")

	_, err = service.NewTokenIssuer(nil, testIssuer, 0, 0, nil)
	require.Error(t, err)

	ti, err := service.NewTokenIssuer(e.keys, testIssuer, 0, 0, nil)
	require.NoError(t, err)
	require.Equal(t, jwtx.DefaultAccessTokenTTL, ti.AccessTTL)
	require.Equal(t, jwtx.DefaultRefreshTokenTTL, ti.RefreshTTL)
}
