// Package auth composes the credential store, password hasher, and token
// service into request-level authentication: registration, login, and the
// bearer-token gate consulted by every protected endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aphorist/aphorist/auth/password"
	"github.com/aphorist/aphorist/auth/token"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/user"
)

// ErrInvalidCredentials is returned by Authenticate when the username is
// unknown or the password does not match. The two cases are indistinguishable
// to the caller.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrUnauthorized is the single outcome for every token-gate failure:
// bad signature, expired token, missing subject, unknown subject, or a
// disabled account. Callers must surface it generically.
var ErrUnauthorized = errors.New("auth: could not validate credentials")

// UserStore is the credential persistence contract the service depends on.
// *user.Store satisfies it; tests substitute fakes.
type UserStore interface {
	Create(ctx context.Context, u user.User) error
	Get(ctx context.Context, username string) (*user.User, error)
}

// Service implements registration, login, and bearer-token authentication.
type Service struct {
	store  UserStore
	hasher password.Hasher
	tokens *token.Service
	log    *logger.Logger
}

// NewService creates an auth service from its injected collaborators.
func NewService(store UserStore, hasher password.Hasher, tokens *token.Service, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		log:    log.WithComponent("auth"),
	}
}

// Register hashes the password and persists a new, enabled user record.
// A duplicate username surfaces as user.ErrAlreadyExists.
func (s *Service) Register(ctx context.Context, username, plaintext, email string) error {
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	return s.store.Create(ctx, user.User{
		Username:       username,
		HashedPassword: hash,
		Disabled:       false,
		Email:          email,
	})
}

// Authenticate resolves the username and verifies the password against the
// stored hash. An unknown user and a wrong password both return
// ErrInvalidCredentials; a store outage propagates as user.ErrUnavailable.
func (s *Service) Authenticate(ctx context.Context, username, plaintext string) (*user.User, error) {
	u, err := s.store.Get(ctx, username)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.Verify(plaintext, u.HashedPassword); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Login authenticates the credentials and issues an access token with the
// configured access-token TTL.
func (s *Service) Login(ctx context.Context, username, plaintext string) (string, error) {
	u, err := s.Authenticate(ctx, username, plaintext)
	if err != nil {
		return "", err
	}
	tok, err := s.tokens.Issue(u.Username, s.tokens.AccessTokenTTL())
	if err != nil {
		return "", fmt.Errorf("auth: issue token: %w", err)
	}
	s.log.Info("Access token issued", logger.Fields(logger.FieldUsername, u.Username))
	return tok, nil
}

// UserFromToken verifies a bearer token and resolves its subject to a live
// user record. Verification failure, an unknown subject, and a disabled
// account all return ErrUnauthorized; a store outage propagates distinctly.
func (s *Service) UserFromToken(ctx context.Context, tokenString string) (*user.User, error) {
	subject, err := s.tokens.Verify(tokenString)
	if err != nil {
		s.log.Debug("Token verification failed", logger.Fields("reason", err.Error()))
		return nil, ErrUnauthorized
	}

	u, err := s.store.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if u.Disabled {
		return nil, ErrUnauthorized
	}
	return u, nil
}
