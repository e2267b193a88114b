package cache

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds Redis connection and entry lifetime settings.
type Config struct {
	Enabled     bool   `toml:"enabled"`
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	Prefix      string `toml:"prefix"`
	TTL         string `toml:"ttl"`
	DialTimeout string `toml:"dial_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled     string
	Addr        string
	Password    string
	DB          string
	Prefix      string
	TTL         string
	DialTimeout string
}

// TTLDuration returns TTL as a time.Duration.
func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// DialTimeoutDuration returns DialTimeout as a time.Duration.
func (c *Config) DialTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.DialTimeout)
	return d
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
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
	if overlay.TTL != "" {
		c.TTL = overlay.TTL
	}
	if overlay.DialTimeout != "" {
		c.DialTimeout = overlay.DialTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Prefix == "" {
		c.Prefix = "promptverse:"
	}
	if c.TTL == "" {
		c.TTL = "10m"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
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
	if env.Addr != "" {
		if v := os.Getenv(env.Addr); v != "" {
			c.Addr = v
		}
	}
	if env.Password != "" {
		if v := os.Getenv(env.Password); v != "" {
			c.Password = v
		}
	}
	if env.DB != "" {
		if v := os.Getenv(env.DB); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.DB = n
			}
		}
	}
	if env.Prefix != "" {
		if v := os.Getenv(env.Prefix); v != "" {
			c.Prefix = v
		}
	}
	if env.TTL != "" {
		if v := os.Getenv(env.TTL); v != "" {
			c.TTL = v
		}
	}
	if env.DialTimeout != "" {
		if v := os.Getenv(env.DialTimeout); v != "" {
			c.DialTimeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.DB < 0 {
		return fmt.Errorf("invalid db: %d", c.DB)
	}
	if d, err := time.ParseDuration(c.TTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid ttl: %q", c.TTL)
	}
	if _, err := time.ParseDuration(c.DialTimeout); err != nil {
		return fmt.Errorf("invalid dial_timeout: %w", err)
	}
	return nil
}
