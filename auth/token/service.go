// Package token issues and verifies signed bearer tokens.
//
// Tokens are stateless JWTs carrying a subject and an absolute expiry; no
// server-side session state exists. Verification failures are classified
// internally (signature, expiry, malformed claims) for diagnostics, but the
// API boundary collapses all of them into one opaque unauthorized outcome.
package token

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Diagnostic verification failures. Handlers must not surface these
// distinctions to callers.
var (
	// ErrInvalidSignature indicates the token signature did not verify.
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrExpired indicates the token expiry has passed.
	ErrExpired = errors.New("token: expired")
	// ErrMalformedClaims indicates the token parsed but carries no subject.
	ErrMalformedClaims = errors.New("token: malformed claims")
)

// fallbackTTL applies when Issue is called with a non-positive TTL.
// Note this differs from the configured access-token TTL used by the login
// endpoint; both values are kept as observed in the original service.
const fallbackTTL = 15 * time.Minute

// Claims is the JWT payload: a registered subject ("sub") and expiry ("exp").
type Claims struct {
	gojwt.RegisteredClaims
}

// Service issues and verifies HMAC-signed JWTs.
type Service struct {
	cfg Config
}

// NewService creates a token service from configuration.
func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	return &Service{cfg: cfg}, nil
}

// AccessTokenTTL returns the configured lifetime for access tokens.
func (s *Service) AccessTokenTTL() time.Duration {
	return s.cfg.AccessTokenTTL
}

// Issue creates a signed token for the subject expiring after ttl.
// A non-positive ttl falls back to 15 minutes.
func (s *Service) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = fallbackTTL
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	}

	tok := gojwt.NewWithClaims(s.cfg.signingMethod(), claims)
	signed, err := tok.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify validates the signature and expiry of tokenString and returns the
// subject claim. No expiry leeway is applied.
func (s *Service) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	tok, err := gojwt.ParseWithClaims(tokenString, claims, s.keyFunc,
		gojwt.WithValidMethods([]string{s.cfg.signingMethod().Alg()}),
	)
	if err != nil {
		switch {
		case errors.Is(err, gojwt.ErrTokenExpired):
			return "", ErrExpired
		case errors.Is(err, gojwt.ErrTokenSignatureInvalid):
			return "", ErrInvalidSignature
		default:
			return "", fmt.Errorf("%w: %v", ErrMalformedClaims, err)
		}
	}
	if !tok.Valid {
		return "", ErrInvalidSignature
	}
	if claims.Subject == "" {
		return "", ErrMalformedClaims
	}
	return claims.Subject, nil
}

// keyFunc rejects tokens whose signing method differs from the configured one.
func (s *Service) keyFunc(tok *gojwt.Token) (interface{}, error) {
	expected := s.cfg.signingMethod()
	if tok.Method.Alg() != expected.Alg() {
		return nil, fmt.Errorf("token: unexpected signing method: %s", tok.Method.Alg())
	}
	return []byte(s.cfg.Secret), nil
}
