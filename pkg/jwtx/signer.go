package jwtx

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// NewSigner builds a signer for alg from a PEM encoded private key.
func NewSigner(alg, kid string, pemKey []byte) (Signer, error) {
	switch alg {
	case AlgorithmRS256:
		return NewSignerRS256(kid, pemKey)
	case AlgorithmES256:
		return NewSignerES256(kid, pemKey)
	case AlgorithmEdDSA:
		return NewSignerEdDSA(kid, pemKey)
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", alg)
	}
}

// NewSignerRS256 creates an RS256 signer from PEM bytes. Both PKCS1 and
// PKCS8 are accepted since openssl hands out either depending on version.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	block, err := decodePEM(pemKey, "RSA PRIVATE KEY", "PRIVATE KEY")
	if err != nil {
		return nil, err
	}

	var key *rsa.PrivateKey
	if block.Type == "RSA PRIVATE KEY" {
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse RSA key: %w", err)
		}
	} else {
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not RSA private key")
		}
		key = rk
	}

	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodRS256,
		key:    key,
		jwk:    NewRSAJWK(kid, "sig", AlgorithmRS256, &key.PublicKey),
		check: func() error {
			if key.N.BitLen() < 2048 {
				return errors.New("jwtx: RSA key shorter than 2048 bits")
			}
			return key.Validate()
		},
	}, nil
}

// NewSignerEdDSA creates an EdDSA signer from PEM bytes.
// Ed25519 keys must be in PKCS8 format.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not Ed25519 private key")
	}
	pub := key.Public().(ed25519.PublicKey)

	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodEdDSA,
		key:    key,
		jwk:    NewEd25519JWK(kid, "sig", AlgorithmEdDSA, pub),
		check: func() error {
			if len(key) != ed25519.PrivateKeySize || len(pub) != ed25519.PublicKeySize {
				return errors.New("jwtx: invalid Ed25519 key size")
			}
			return nil
		},
	}, nil
}

// NewSignerES256 creates an ES256 signer from PEM bytes.
// ECDSA P-256 keys must be in PKCS8 format.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	priv, err := parsePKCS8(pemKey)
	if err != nil {
		return nil, err
	}
	key, ok := priv.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: not ECDSA private key")
	}
	if key.Curve != elliptic.P256() {
		return nil, errors.New("jwtx: ES256 requires a P-256 key")
	}

	return &keySigner{
		kid:    kid,
		method: jwt.SigningMethodES256,
		key:    key,
		jwk:    NewES256JWK(kid, "sig", AlgorithmES256, &key.PublicKey),
		check:  func() error { return nil },
	}, nil
}

// keySigner signs with whatever private key type method expects.
type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    any
	jwk    JWK
	check  func() error
}

func (s *keySigner) Alg() string    { return s.method.Alg() }
func (s *keySigner) KID() string    { return s.kid }
func (s *keySigner) PublicJWK() JWK { return s.jwk }

// Sign serialises claims into a compact JWT with the kid header set so
// verifiers can pick the right key out of the JWKS.
func (s *keySigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *keySigner) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil signing key")
	}
	if s.kid == "" {
		return errors.New("jwtx: empty kid")
	}
	return s.check()
}

func decodePEM(pemKey []byte, types ...string) (*pem.Block, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM private key")
	}
	for _, t := range types {
		if block.Type == t {
			return block, nil
		}
	}
	return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
}

func parsePKCS8(pemKey []byte) (any, error) {
	block, err := decodePEM(pemKey, "PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
	}
	return priv, nil
}
