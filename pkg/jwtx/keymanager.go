package jwtx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/aussiebroadwan/haulage/pkg/cryptox"
)

// KeyManager owns the signing keys of an instance and the KeySet/Decoder
// pair that verifies what they sign.
//
// Several signing keys may be active at once; Sign picks one at random so
// load spreads and no single kid becomes a long-lived target.
type KeyManager struct {
	KeySet  *KeySet
	Decoder *Decoder

	algorithm string

	signers []Signer
	mu      sync.RWMutex
}

// KeyManagerOptions configures the KeyManager for a specific use case.
type KeyManagerOptions struct {
	// Algorithm specifies which signing algorithm to use.
	// Supported values: "RS256", "ES256", "EdDSA"
	Algorithm string

	// Issuer is written into every token and required when decoding.
	Issuer string

	// Audience values required when decoding. Empty disables the check.
	Audience []string

	// RSABits specifies the RSA key size for RS256. Defaults to 4096,
	// must be at least 2048.
	RSABits int

	// NumKeys specifies how many ephemeral signing keys to generate.
	// Defaults to 3, capped at 10.
	NumKeys int

	// Clock drives Decoder.Verify. Defaults to clock.System.
	Clock clock.Clock
}

func newKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}
	switch opts.Algorithm {
	case AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA:
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", opts.Algorithm)
	}

	keyset := NewKeySet()
	return &KeyManager{
		KeySet: keyset,
		Decoder: NewDecoder(keyset, VerifyOptions{
			Algorithm: opts.Algorithm,
			Issuer:    opts.Issuer,
			Audience:  opts.Audience,
			Clock:     opts.Clock,
		}),
		algorithm: opts.Algorithm,
	}, nil
}

// NewEphemeralKeyManager creates a KeyManager whose keys only exist in
// memory. Every token becomes invalid when the process restarts, which is
// acceptable for a single instance but not for a fleet behind a balancer.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	km, err := newKeyManager(opts)
	if err != nil {
		return nil, err
	}

	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 3
	}
	if numKeys > 10 {
		numKeys = 10
	}

	for i := range numKeys {
		keyID, err := generateRandomKeyID()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate key ID: %w", err)
		}

		signer, err := generateSigner(opts.Algorithm, keyID, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}

		if err := km.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d: %w", i+1, err)
		}
	}

	return km, nil
}

// NewStaticKeyManager creates a KeyManager around a single PEM encoded
// private key, so every replica sharing the file signs and verifies alike.
func NewStaticKeyManager(opts KeyManagerOptions, kid string, pemKey []byte) (*KeyManager, error) {
	km, err := newKeyManager(opts)
	if err != nil {
		return nil, err
	}

	signer, err := NewSigner(opts.Algorithm, kid, pemKey)
	if err != nil {
		return nil, err
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}
	if err := km.AddSigner(signer); err != nil {
		return nil, err
	}
	return km, nil
}

// generateSigner creates a fresh private key and wraps it in a signer.
func generateSigner(algorithm, keyID string, rsaBits int) (Signer, error) {
	var pemBytes []byte
	var err error

	switch algorithm {
	case AlgorithmRS256:
		bits := rsaBits
		if bits == 0 {
			bits = 4096
		}
		pemBytes, err = cryptox.GenerateRSAKey(bits)
	case AlgorithmES256:
		pemBytes, err = cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		pemBytes, err = cryptox.GenerateEd25519Key()
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s key: %w", algorithm, err)
	}
	return NewSigner(algorithm, keyID, pemBytes)
}

// Algorithm returns the signing algorithm being used.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.NumSigners() > 0 && km.KeySet.IsReady()
}

// GetSigner returns a randomly selected active signer, or nil if there
// are none.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// Sign signs claims with one of the active keys.
func (km *KeyManager) Sign(claims Claims) (string, error) {
	signer := km.GetSigner()
	if signer == nil {
		return "", errors.New("jwtx: no signing key available")
	}
	return signer.Sign(claims)
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner adds a signing key and publishes its public half.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return errors.New("jwtx: signer cannot be nil")
	}
	if signer.Alg() != km.algorithm {
		return fmt.Errorf("%w: signer is %s, manager is %s", ErrAlgMismatch, signer.Alg(), km.algorithm)
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// generateRandomKeyID returns "haulage-{128-bit token}".
func generateRandomKeyID() (string, error) {
	token, err := cryptox.RandomToken(16)
	if err != nil {
		return "", err
	}
	return "haulage-" + token, nil
}
