package users_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	client := setupSQLiteService(t)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)

	health, err = client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
	require.Empty(t, health.Checks.Cache, "no redis configured")
}

// TestAccessTokenVerifiesAgainstJWKS is what another logistics service
// does: fetch the key set once and verify access tokens locally.
func TestAccessTokenVerifiesAgainstJWKS(t *testing.T) {
	client := setupSQLiteService(t)
	session := loginAdmin(t, client)

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)

	keys := jwtx.NewKeySet()
	for _, k := range jwks.Keys {
		require.NoError(t, keys.AddJWK(k))
	}
	decoder := jwtx.NewDecoder(keys, jwtx.VerifyOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
	})

	claims, err := decoder.Verify(session.AccessToken())
	require.NoError(t, err)
	require.Equal(t, adminUsername, claims.Subject)
	require.Equal(t, jwtx.UseAccess, claims.Use)
	require.Contains(t, claims.Roles, "admin")
	require.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Minute)
}
