// Package token encodes and decodes the signed, time-bounded identity tokens
// organizations present as API keys.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode failure modes. Both surface to callers as an invalid credential;
// they stay distinct so diagnostics can tell probing apart from corruption.
var (
	ErrMalformed    = errors.New("token is malformed")
	ErrBadSignature = errors.New("token signature is invalid")
)

// Payload is the decoded content of an identity token.
type Payload struct {
	// Subject is the organization ID the token was issued to.
	Subject string
	// ExpiresAt is the absolute expiry carried in the token. The codec does
	// not judge it; expiry comparison belongs to the resolver so tests can
	// inject a clock.
	ExpiresAt time.Time
}

type claims struct {
	jwt.RegisteredClaims
}

// Codec signs and verifies identity tokens with a single symmetric key and a
// fixed algorithm (HS256). It is pure: no clock, no I/O.
type Codec struct {
	signingKey []byte
}

// NewCodec constructs a Codec for the process-wide signing key.
func NewCodec(signingKey string) *Codec {
	return &Codec{signingKey: []byte(signingKey)}
}

// Decode verifies the signature and structural shape of a token and returns
// its payload. Expiry is exposed, not enforced: a structurally valid token
// with a past expiry decodes successfully.
func (c *Codec) Decode(raw string) (*Payload, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return c.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, ErrBadSignature
		}
		return nil, ErrMalformed
	}

	cl, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if cl.Subject == "" || cl.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	return &Payload{
		Subject:   cl.Subject,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}

// Encode signs a token for the given subject and absolute expiry.
// Issuance policy (who gets tokens, rotation) lives elsewhere; this is the
// wire-format counterpart of Decode.
func (c *Codec) Encode(subject string, expiresAt time.Time) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	return tok.SignedString(c.signingKey)
}
