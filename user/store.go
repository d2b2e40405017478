// Package user persists user records in Redis, one hash per user.
//
// Records live at key "user:<username>" with string-encoded fields
// username, hashed_password, disabled ("True"/"False"), and email. The
// store holds no in-process cache; Redis is the single source of truth.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aphorist/aphorist/logger"
)

const keyPrefix = "user:"

// Store errors. ErrUnavailable wraps transport or server failures so callers
// can distinguish a store outage from a genuinely missing record.
var (
	ErrAlreadyExists = errors.New("user: already exists")
	ErrNotFound      = errors.New("user: not found")
	ErrUnavailable   = errors.New("user: store unavailable")
)

// User is a stored credential record. HashedPassword is an opaque one-way
// hash; the plaintext never reaches this package.
type User struct {
	Username       string
	HashedPassword string
	Disabled       bool
	Email          string
}

// HashClient is the subset of Redis operations the store uses.
// *redis.Client satisfies it; tests substitute an in-memory fake.
type HashClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) error
	HSetNX(ctx context.Context, key, field string, value interface{}) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
}

// Store is the credential store backing registration and login.
type Store struct {
	client HashClient
	log    *logger.Logger
}

// NewStore creates a Store on top of the given Redis client.
func NewStore(client HashClient, log *logger.Logger) *Store {
	return &Store{client: client, log: log.WithComponent("user-store")}
}

// Create persists a new user record. It fails with ErrAlreadyExists if a
// record for the username is present. The existence claim uses HSETNX so
// two concurrent registrations for the same name cannot both succeed; the
// full record is then written as a single HSET.
func (s *Store) Create(ctx context.Context, u User) error {
	if u.Username == "" {
		return fmt.Errorf("user: username must not be empty")
	}
	key := keyPrefix + u.Username

	claimed, err := s.client.HSetNX(ctx, key, "username", u.Username)
	if err != nil {
		return fmt.Errorf("%w: claim %s: %v", ErrUnavailable, key, err)
	}
	if !claimed {
		return ErrAlreadyExists
	}

	err = s.client.HSet(ctx, key,
		"username", u.Username,
		"hashed_password", u.HashedPassword,
		"disabled", encodeBool(u.Disabled),
		"email", u.Email,
	)
	if err != nil {
		// Release the claim so the name is not bricked by a partial record.
		// If the delete also fails the claim may persist until it is removed
		// out of band; a record must only exist once fully written.
		if delErr := s.client.Del(ctx, key); delErr != nil {
			s.log.WithError(delErr).Error("Failed to release claim after write failure",
				logger.Fields(logger.FieldUsername, u.Username))
		}
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, err)
	}

	s.log.Info("User created", logger.Fields(logger.FieldUsername, u.Username))
	return nil
}

// Get returns the record for username, ErrNotFound if absent, or
// ErrUnavailable if the store cannot be reached.
func (s *Store) Get(ctx context.Context, username string) (*User, error) {
	key := keyPrefix + username

	fields, err := s.client.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return &User{
		Username:       fields["username"],
		HashedPassword: fields["hashed_password"],
		Disabled:       decodeBool(fields["disabled"]),
		Email:          fields["email"],
	}, nil
}

// encodeBool matches the persisted "True"/"False" string encoding.
func encodeBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func decodeBool(s string) bool {
	return strings.EqualFold(s, "true")
}
