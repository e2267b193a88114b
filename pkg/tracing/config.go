package tracing

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Exporter names accepted by Config.Exporter.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Config holds OpenTelemetry trace export settings.
type Config struct {
	Enabled     bool              `toml:"enabled"`
	ServiceName string            `toml:"service_name"`
	Exporter    string            `toml:"exporter"`
	Endpoint    string            `toml:"endpoint"`
	Insecure    bool              `toml:"insecure"`
	Headers     map[string]string `toml:"headers"`
	SampleRatio float64           `toml:"sample_ratio"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled     string
	ServiceName string
	Exporter    string
	Endpoint    string
	Insecure    string
	SampleRatio string
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
	if overlay.ServiceName != "" {
		c.ServiceName = overlay.ServiceName
	}
	if overlay.Exporter != "" {
		c.Exporter = overlay.Exporter
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.Insecure {
		c.Insecure = true
	}
	if overlay.Headers != nil {
		c.Headers = overlay.Headers
	}
	if overlay.SampleRatio != 0 {
		c.SampleRatio = overlay.SampleRatio
	}
}

func (c *Config) loadDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "promptverse"
	}
	if c.Exporter == "" {
		c.Exporter = ExporterOTLP
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1
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
	if env.ServiceName != "" {
		if v := os.Getenv(env.ServiceName); v != "" {
			c.ServiceName = v
		}
	}
	if env.Exporter != "" {
		if v := os.Getenv(env.Exporter); v != "" {
			c.Exporter = strings.ToLower(v)
		}
	}
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.Insecure != "" {
		if v := os.Getenv(env.Insecure); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Insecure = b
			}
		}
	}
	if env.SampleRatio != "" {
		if v := os.Getenv(env.SampleRatio); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.SampleRatio = f
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Exporter {
	case ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid exporter: %s", c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1: %v", c.SampleRatio)
	}
	return nil
}
