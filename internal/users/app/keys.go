package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/jwtx"
)

// InitAuthKeys builds the KeyManager that signs and verifies tokens.
//
// With a signing key file every replica shares one key, so tokens survive
// restarts and any instance can refresh them. Without one, keys are
// generated in memory and every token dies with the process.
func InitAuthKeys(cfg AuthConfig, clk clock.Clock, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
		Clock:     clk,
	}

	if cfg.SigningKeyFile != "" {
		pemKey, err := os.ReadFile(filepath.Clean(cfg.SigningKeyFile))
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}

		km, err := jwtx.NewStaticKeyManager(opts, cfg.SigningKeyID, pemKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize static key manager: %w", err)
		}

		logger.Info("loaded signing key",
			"algorithm", km.Algorithm(),
			"kid", cfg.SigningKeyID,
			"issuer", cfg.Issuer,
		)
		return km, nil
	}

	logger.Info("initializing ephemeral key manager",
		"algorithm", cfg.Algorithm,
		"num_keys", cfg.NumKeys,
	)

	km, err := jwtx.NewEphemeralKeyManager(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("generated ephemeral signing keys",
		"algorithm", km.Algorithm(),
		"num_keys", km.NumSigners(),
		"issuer", cfg.Issuer,
	)
	logger.Warn("all existing tokens are now invalid due to key rotation on startup")

	return km, nil
}
