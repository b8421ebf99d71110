// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime setting for the server. The signing key has no
// default on purpose: it must come from the environment.
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	DSN string `env:"DSN" envDefault:"file::memory:?cache=shared"`

	SigningKey      string        `env:"SIGNING_KEY"`
	SigningMethod   string        `env:"SIGNING_METHOD" envDefault:"HS256"`
	TokenExpiration int           `env:"TOKEN_EXPIRATION_HOURS" envDefault:"72"`
	Issuer          string        `env:"TOKEN_ISSUER" envDefault:""`
	Audience        []string      `env:"TOKEN_AUDIENCE" envSeparator:","`
	ContextKey      string        `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	TokenLookup     string        `env:"AUTH_TOKEN_LOOKUP" envDefault:"header:Authorization"`
	AuthScheme      string        `env:"AUTH_SCHEME" envDefault:"Bearer"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// New reads the configuration from the environment.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the server cannot safely run with.
func (c *Config) Validate() error {
	if c.SigningKey == "" {
		return fmt.Errorf("SIGNING_KEY is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}

	if c.TokenExpiration <= 0 {
		return fmt.Errorf("TOKEN_EXPIRATION_HOURS must be positive: %d", c.TokenExpiration)
	}

	return nil
}

// Addr returns the host:port pair the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetSigningMethod() string {
	return c.SigningMethod
}

func (c *Config) GetContextKey() string {
	return c.ContextKey
}

func (c *Config) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *Config) GetTokenLookup() string {
	return c.TokenLookup
}

func (c *Config) GetAuthScheme() string {
	return c.AuthScheme
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Audience
}
