package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mxn2020/prompt-verse-io/pkg/auth"
	"github.com/mxn2020/prompt-verse-io/pkg/cache"
	"github.com/mxn2020/prompt-verse-io/pkg/database"
	"github.com/mxn2020/prompt-verse-io/pkg/storage"
	"github.com/mxn2020/prompt-verse-io/pkg/tracing"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPromptVerseEnv             = "PROMPTVERSE_ENV"
	EnvPromptVerseShutdownTimeout = "PROMPTVERSE_SHUTDOWN_TIMEOUT"
	EnvPromptVerseVersion         = "PROMPTVERSE_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "PROMPTVERSE_DB_HOST",
	Port:            "PROMPTVERSE_DB_PORT",
	Name:            "PROMPTVERSE_DB_NAME",
	User:            "PROMPTVERSE_DB_USER",
	Password:        "PROMPTVERSE_DB_PASSWORD",
	SSLMode:         "PROMPTVERSE_DB_SSL_MODE",
	MaxOpenConns:    "PROMPTVERSE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PROMPTVERSE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PROMPTVERSE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PROMPTVERSE_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "PROMPTVERSE_STORAGE_CONTAINER_NAME",
	ConnectionString: "PROMPTVERSE_STORAGE_CONNECTION_STRING",
	MaxListSize:      "PROMPTVERSE_STORAGE_MAX_LIST_SIZE",
}

var cacheEnv = &cache.Env{
	Enabled:     "PROMPTVERSE_CACHE_ENABLED",
	Addr:        "PROMPTVERSE_CACHE_ADDR",
	Password:    "PROMPTVERSE_CACHE_PASSWORD",
	DB:          "PROMPTVERSE_CACHE_DB",
	Prefix:      "PROMPTVERSE_CACHE_PREFIX",
	TTL:         "PROMPTVERSE_CACHE_TTL",
	DialTimeout: "PROMPTVERSE_CACHE_DIAL_TIMEOUT",
}

var authEnv = &auth.Env{
	Enabled:  "PROMPTVERSE_AUTH_ENABLED",
	JWKSURL:  "PROMPTVERSE_AUTH_JWKS_URL",
	Issuer:   "PROMPTVERSE_AUTH_ISSUER",
	Audience: "PROMPTVERSE_AUTH_AUDIENCE",
	Role:     "PROMPTVERSE_AUTH_ROLE",
	DevOwner: "PROMPTVERSE_AUTH_DEV_OWNER",
}

var tracingEnv = &tracing.Env{
	Enabled:     "PROMPTVERSE_TRACING_ENABLED",
	ServiceName: "PROMPTVERSE_TRACING_SERVICE_NAME",
	Exporter:    "PROMPTVERSE_TRACING_EXPORTER",
	Endpoint:    "PROMPTVERSE_TRACING_ENDPOINT",
	Insecure:    "PROMPTVERSE_TRACING_INSECURE",
	SampleRatio: "PROMPTVERSE_TRACING_SAMPLE_RATIO",
}

// Config is the root configuration for the PromptVerse service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	Cache           cache.Config      `toml:"cache"`
	Auth            auth.Config       `toml:"auth"`
	Tracing         tracing.Config    `toml:"tracing"`
	Composition     CompositionConfig `toml:"composition"`
	API             APIConfig         `toml:"api"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the PROMPTVERSE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPromptVerseEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Cache.Merge(&overlay.Cache)
	c.Auth.Merge(&overlay.Auth)
	c.Tracing.Merge(&overlay.Tracing)
	c.Composition.Merge(&overlay.Composition)
	c.API.Merge(&overlay.API)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Cache.Finalize(cacheEnv); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Auth.Finalize(authEnv); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Tracing.Finalize(tracingEnv); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Composition.Finalize(); err != nil {
		return fmt.Errorf("composition: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvPromptVerseShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPromptVerseVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvPromptVerseEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
