// Package auth verifies and issues the HS256 stream tokens presented by
// dashboard clients. A token is three dot-separated base64url segments whose
// payload carries a subject and an optional exp in Unix seconds.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentstation/boardstream/pkg/errors"
)

// Anonymous is the subject used when a valid token names nobody.
const Anonymous = "anonymous"

// Claims is the token payload. Both the "subject" claim and the registered
// "sub" claim are accepted, "subject" taking precedence.
type Claims struct {
	Name string `json:"subject,omitempty"`
	jwt.RegisteredClaims
}

// SubjectOrAnonymous returns the identity named by the claims.
func (c *Claims) SubjectOrAnonymous() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Subject != "":
		return c.Subject
	default:
		return Anonymous
	}
}

// Principal is the result of a successful verification.
type Principal struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

// Verifier validates tokens against a shared HMAC secret.
// It holds no state beyond its configuration and is safe for concurrent use.
type Verifier struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewVerifier creates a verifier. An empty secret is accepted so that a
// misconfigured deployment fails each verification instead of failing open.
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	return v
}

// Verify checks, in order, token shape, payload decoding, expiry, server
// configuration and signature. Every rejection is an
// *errors.AuthenticationError wrapping the matching sentinel.
func (v *Verifier) Verify(token string) (Principal, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return Principal{}, errors.NewAuthenticationError(errors.ErrMalformedToken, "expected 3 segments")
	}
	for _, s := range segments {
		if s == "" {
			return Principal{}, errors.NewAuthenticationError(errors.ErrMalformedToken, "empty segment")
		}
	}

	claims := &Claims{}
	if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return Principal{}, errors.NewAuthenticationError(errors.ErrMalformedToken, err.Error())
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
		if !v.now().Before(expiresAt) {
			return Principal{}, errors.NewAuthenticationError(errors.ErrExpired, "")
		}
	}

	if len(v.secret) == 0 {
		return Principal{}, errors.NewAuthenticationError(errors.ErrMisconfiguredServer, "signing secret not configured")
	}

	if _, err := v.parser.ParseWithClaims(token, &Claims{}, v.key); err != nil {
		return Principal{}, errors.NewAuthenticationError(errors.ErrInvalidSignature, "")
	}

	return Principal{
		Subject:   claims.SubjectOrAnonymous(),
		ExpiresAt: expiresAt,
	}, nil
}

func (v *Verifier) key(*jwt.Token) (any, error) {
	return v.secret, nil
}
