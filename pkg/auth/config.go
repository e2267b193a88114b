package auth

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// DefaultDevOwner is the owner attached to every request when verification is disabled.
const DefaultDevOwner = "00000000-0000-0000-0000-000000000001"

// Config holds bearer token verification settings.
type Config struct {
	Enabled  bool   `toml:"enabled"`
	JWKSURL  string `toml:"jwks_url"`
	Issuer   string `toml:"issuer"`
	Audience string `toml:"audience"`
	Role     string `toml:"role"`
	DevOwner string `toml:"dev_owner"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled  string
	JWKSURL  string
	Issuer   string
	Audience string
	Role     string
	DevOwner string
}

// DevOwnerID returns DevOwner as a UUID. Only meaningful after Finalize.
func (c *Config) DevOwnerID() uuid.UUID {
	id, _ := uuid.Parse(c.DevOwner)
	return id
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.JWKSURL != "" {
		c.JWKSURL = overlay.JWKSURL
	}
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.Audience != "" {
		c.Audience = overlay.Audience
	}
	if overlay.Role != "" {
		c.Role = overlay.Role
	}
	if overlay.DevOwner != "" {
		c.DevOwner = overlay.DevOwner
	}
}

func (c *Config) loadDefaults() {
	if c.DevOwner == "" {
		c.DevOwner = DefaultDevOwner
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	if env.JWKSURL != "" {
		if v := os.Getenv(env.JWKSURL); v != "" {
			c.JWKSURL = v
		}
	}
	if env.Issuer != "" {
		if v := os.Getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
	}
	if env.Audience != "" {
		if v := os.Getenv(env.Audience); v != "" {
			c.Audience = v
		}
	}
	if env.Role != "" {
		if v := os.Getenv(env.Role); v != "" {
			c.Role = v
		}
	}
	if env.DevOwner != "" {
		if v := os.Getenv(env.DevOwner); v != "" {
			c.DevOwner = v
		}
	}
}

func (c *Config) validate() error {
	if c.Enabled && c.JWKSURL == "" {
		return fmt.Errorf("jwks_url required when enabled")
	}
	if _, err := uuid.Parse(c.DevOwner); err != nil {
		return fmt.Errorf("invalid dev_owner: %w", err)
	}
	return nil
}
