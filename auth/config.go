package auth

import (
	"fmt"

	"github.com/aphorist/aphorist/auth/password"
	"github.com/aphorist/aphorist/auth/token"
)

// Config holds all authentication configuration, composing the subpackage
// configs for loading from YAML/env via mapstructure.
type Config struct {
	// JWT configures the token service.
	JWT token.Config `mapstructure:"jwt"`

	// Password configures password hashing.
	Password password.Config `mapstructure:"password"`
}

// ApplyDefaults sets sensible defaults for sub-configurations.
func (c *Config) ApplyDefaults() {
	c.JWT.ApplyDefaults()
	c.Password.ApplyDefaults()
}

// Validate checks all sub-configurations.
func (c *Config) Validate() error {
	if err := c.JWT.Validate(); err != nil {
		return fmt.Errorf("auth.jwt: %w", err)
	}
	if err := c.Password.Validate(); err != nil {
		return fmt.Errorf("auth.password: %w", err)
	}
	return nil
}
