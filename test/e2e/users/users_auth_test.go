package users_test

import (
	"testing"

	"github.com/aussiebroadwan/haulage/pkg/usersdk"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoginRefresh(t *testing.T) {
	client := setupSQLiteService(t)
	ctx := t.Context()

	user, err := client.Register(ctx, usersdk.RegisterRequest{
		Username: "yard.hand",
		Password: "yard-password",
		Email:    "yard@haulage.test",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"user"}, user.Roles)

	session, err := client.Login(ctx, "yard.hand", "yard-password")
	require.NoError(t, err)

	oldAccess, oldRefresh := session.AccessToken(), session.RefreshToken()
	require.NoError(t, session.Refresh(ctx))
	require.NotEqual(t, oldAccess, session.AccessToken(), "access token should be rotated")
	require.NotEqual(t, oldRefresh, session.RefreshToken(), "refresh token should be rotated")

	me, err := session.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, user.ID, me.ID)

	// Refresh tokens are not revoked on rotation, the old one still works
	// until it expires.
	_, _, _, err = client.Refresh(ctx, oldRefresh)
	require.NoError(t, err)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	client := setupSQLiteService(t)
	ctx := t.Context()

	_, err := client.Login(ctx, adminUsername, "wrong-password")
	require.ErrorIs(t, err, usersdk.ErrInvalidCredentials)

	_, err = client.Login(ctx, "nobody", "wrong-password")
	require.ErrorIs(t, err, usersdk.ErrInvalidCredentials)
}

func TestRefreshErrors(t *testing.T) {
	client := setupSQLiteService(t)
	ctx := t.Context()

	_, _, _, err := client.Refresh(ctx, "")
	require.ErrorIs(t, err, usersdk.ErrMissingToken)

	_, _, _, err = client.Refresh(ctx, "not.a.token")
	require.ErrorIs(t, err, usersdk.ErrInvalidToken)

	session := loginAdmin(t, client)
	_, _, _, err = client.Refresh(ctx, session.AccessToken())
	require.ErrorIs(t, err, usersdk.ErrInvalidToken, "access tokens cannot refresh")
}
