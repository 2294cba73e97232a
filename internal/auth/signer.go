package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentstation/boardstream/pkg/errors"
)

// Signer issues tokens the Verifier accepts. It backs the token command
// and tests; production tokens come from the dashboard's session layer.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. A zero ttl issues tokens without exp; a
// negative ttl issues tokens that are already expired.
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for subject.
func (s *Signer) Sign(subject string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.NewConfigError("auth", "signing secret not configured", errors.ErrMisconfiguredServer)
	}

	now := s.now()
	claims := Claims{
		Name: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
