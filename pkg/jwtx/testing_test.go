package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://users.haulage.test"

var algorithms = []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA}

// newTestManager returns a single-key manager on a frozen clock. RSA keys
// are kept at 2048 bits so the suite stays quick.
func newTestManager(t *testing.T, alg string, now time.Time) (*jwtx.KeyManager, *clock.Frozen) {
	t.Helper()

	c := clock.NewFrozen(now)
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: alg,
		Issuer:    exampleIssuer,
		RSABits:   2048,
		NumKeys:   1,
		Clock:     c,
	})
	require.NoError(t, err)
	return km, c
}
