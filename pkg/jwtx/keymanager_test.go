package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestNewEphemeralKeyManager(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(alg, func(t *testing.T) {
			km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
				Algorithm: alg,
				Issuer:    exampleIssuer,
				RSABits:   2048,
				NumKeys:   2,
			})
			require.NoError(t, err)
			require.Equal(t, alg, km.Algorithm())
			require.True(t, km.IsReady())
			require.Equal(t, 2, km.NumSigners())
			require.Len(t, km.KeySet.PublicJWKS().Keys, 2)
			require.Contains(t, km.GetSigner().KID(), "haulage-")
		})
	}
}

func TestNewEphemeralKeyManager_ErrorCases(t *testing.T) {
	t.Run("missing issuer", func(t *testing.T) {
		_, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA})
		require.Error(t, err)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: "HS256", Issuer: exampleIssuer})
		require.Error(t, err)
	})
}

func TestKeyManager_NumKeysBounds(t *testing.T) {
	tests := []struct {
		requested int
		want      int
	}{
		{0, 3},
		{-4, 3},
		{5, 5},
		{25, 10},
	}

	for _, tt := range tests {
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Algorithm: jwtx.AlgorithmEdDSA,
			Issuer:    exampleIssuer,
			NumKeys:   tt.requested,
		})
		require.NoError(t, err)
		require.Equal(t, tt.want, km.NumSigners(), "requested %d", tt.requested)
	}
}

func TestKeyManager_EveryKeyVerifies(t *testing.T) {
	now := time.Now().UTC()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    exampleIssuer,
		NumKeys:   4,
	})
	require.NoError(t, err)

	for range 20 {
		token, err := km.Sign(jwtx.NewClaims(jwtx.UseAccess, "alice", 1, nil, time.Minute, exampleIssuer, now))
		require.NoError(t, err)
		_, err = km.Decoder.Verify(token)
		require.NoError(t, err)
	}
}

func TestNewStaticKeyManager(t *testing.T) {
	pemKey := generatePEM(t, jwtx.AlgorithmES256)
	opts := jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmES256, Issuer: exampleIssuer}

	a, err := jwtx.NewStaticKeyManager(opts, "shared", pemKey)
	require.NoError(t, err)
	b, err := jwtx.NewStaticKeyManager(opts, "shared", pemKey)
	require.NoError(t, err)

	token, err := a.Sign(jwtx.NewClaims(jwtx.UseAccess, "alice", 1, nil, time.Minute, exampleIssuer, time.Now()))
	require.NoError(t, err)

	_, err = b.Decoder.Verify(token)
	require.NoError(t, err, "replicas sharing a key file must accept each other's tokens")
}

func TestKeyManager_AddSignerRejectsOtherAlgorithm(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    exampleIssuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	signer, err := jwtx.NewSignerES256("es", generatePEM(t, jwtx.AlgorithmES256))
	require.NoError(t, err)
	require.ErrorIs(t, km.AddSigner(signer), jwtx.ErrAlgMismatch)
	require.Equal(t, 1, km.NumSigners())
}
