package jwtx_test

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestJWKPublicKeyAndPEM(t *testing.T) {
	for _, alg := range algorithms {
		t.Run(alg, func(t *testing.T) {
			signer, err := jwtx.NewSigner(alg, "k1", generatePEM(t, alg))
			require.NoError(t, err)
			jwk := signer.PublicJWK()

			pub, err := jwk.PublicKey()
			require.NoError(t, err)

			pemStr, err := jwk.PEM()
			require.NoError(t, err)

			block, _ := pem.Decode([]byte(pemStr))
			require.NotNil(t, block)
			require.Equal(t, "PUBLIC KEY", block.Type)

			parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
			require.NoError(t, err)
			require.IsType(t, pub, parsed)
		})
	}
}

func TestJWKErrors(t *testing.T) {
	_, err := jwtx.JWK{Kty: "UNSUPPORTED"}.PublicKey()
	require.ErrorContains(t, err, "unsupported kty")

	_, err = jwtx.JWK{Kty: "RSA", N: "!!!invalid-base64!!!", E: "AQAB"}.PEM()
	require.Error(t, err)

	_, err = jwtx.JWK{Kty: "OKP", Crv: "X25519", X: "AAAA"}.PublicKey()
	require.Error(t, err)
}

func TestKeySet(t *testing.T) {
	ks := jwtx.NewKeySet()
	require.False(t, ks.IsReady())

	signer, err := jwtx.NewSignerEdDSA("k1", generatePEM(t, jwtx.AlgorithmEdDSA))
	require.NoError(t, err)
	require.NoError(t, ks.AddSigner(signer))
	require.NoError(t, ks.AddSigner(signer), "re-adding a kid replaces it")

	require.True(t, ks.IsReady())
	require.Len(t, ks.PublicJWKS().Keys, 1)

	_, err = ks.Get("k1")
	require.NoError(t, err)
	_, err = ks.Get("missing")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	raw, err := json.Marshal(ks.PublicJWKS())
	require.NoError(t, err)
	require.Contains(t, string(raw), `"kid":"k1"`)
}
