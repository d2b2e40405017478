package config

import (
	"fmt"

	"github.com/aphorist/aphorist/auth"
	"github.com/aphorist/aphorist/llm/azure"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/observability"
	"github.com/aphorist/aphorist/redis"
	"github.com/aphorist/aphorist/server"
)

// Config is the top-level service configuration, composing every
// component's section.
type Config struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`

	Server        server.Config        `mapstructure:"server"`
	Redis         redis.Config         `mapstructure:"redis"`
	Auth          auth.Config          `mapstructure:"auth"`
	LLM           azure.Config         `mapstructure:"llm"`
	Logging       logger.Config        `mapstructure:"logging"`
	Observability observability.Config `mapstructure:"observability"`
}

// ApplyDefaults fills in defaults for every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "aphorist"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	c.Server.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	valid := false
	for _, v := range validEnvs {
		if c.Environment == v {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("environment must be one of %v (got: %s)", validEnvs, c.Environment)
	}

	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
