package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/haulage/pkg/clock"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Algorithm the token header must declare. Empty accepts any supported one.
	Algorithm string

	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew when validating exp/nbf in Verify.
	Leeway time.Duration

	// Clock drives expiry checks. Defaults to clock.System.
	Clock clock.Clock
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Decoder checks tokens against a KeySet.
//
// Decode only proves the token was signed by one of our keys and names our
// issuer; it deliberately ignores exp so callers can tell a forged token
// from an expired one. Verify is Decode plus the time checks and is what
// protected endpoints should use.
type Decoder struct {
	keys    *KeySet
	methods []string
	opts    VerifyOptions
}

// NewDecoder creates a decoder over keys.
func NewDecoder(keys *KeySet, opts VerifyOptions) *Decoder {
	methods := []string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}
	if opts.Algorithm != "" {
		methods = []string{opts.Algorithm}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System
	}
	return &Decoder{keys: keys, methods: methods, opts: opts}
}

// Decode validates signature, structure and issuer. Expiry is not enforced.
func (d *Decoder) Decode(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(d.methods),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, d.keyFunc)
	if err != nil {
		return Claims{}, classify(err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSig
	}

	if err := claims.ValidateIssuer(d.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(d.opts.Audience); err != nil {
		return Claims{}, err
	}
	return *claims, nil
}

// Verify decodes the token and rejects it if it is outside its validity
// window according to the decoder's clock.
func (d *Decoder) Verify(tokenStr string) (Claims, error) {
	claims, err := d.Decode(tokenStr)
	if err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateTimeAt(d.opts.Clock.Now(), d.opts.Leeway); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (d *Decoder) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
	}

	pub, err := d.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}
	return pub, nil
}

// classify collapses parser errors into our sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return fmt.Errorf("%w: %w", ErrUnknownKID, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrAlgMismatch, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
