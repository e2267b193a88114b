package config

import (
	"fmt"
	"os"

	"github.com/mxn2020/prompt-verse-io/pkg/formatting"
	"github.com/mxn2020/prompt-verse-io/pkg/middleware"
	"github.com/mxn2020/prompt-verse-io/pkg/openapi"
	"github.com/mxn2020/prompt-verse-io/pkg/pagination"
)

const (
	EnvAPIBasePath    = "PROMPTVERSE_API_BASE_PATH"
	EnvAPIMaxBodySize = "PROMPTVERSE_API_MAX_BODY_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "PROMPTVERSE_CORS_ENABLED",
	Origins:          "PROMPTVERSE_CORS_ORIGINS",
	AllowedMethods:   "PROMPTVERSE_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "PROMPTVERSE_CORS_ALLOWED_HEADERS",
	AllowCredentials: "PROMPTVERSE_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "PROMPTVERSE_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "PROMPTVERSE_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "PROMPTVERSE_PAGINATION_MAX_PAGE_SIZE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "PROMPTVERSE_OPENAPI_TITLE",
	Description: "PROMPTVERSE_OPENAPI_DESCRIPTION",
}

// APIConfig holds API routing, request limits, CORS, pagination, and
// OpenAPI document settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize string                `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Pagination  pagination.Config     `toml:"pagination"`
	OpenAPI     openapi.Config        `toml:"openapi"`
}

// MaxBodySizeBytes returns MaxBodySize in bytes. Only meaningful after Finalize.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxBodySize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxBodySize); v != "" {
		c.MaxBodySize = v
	}
}

func (c *APIConfig) validate() error {
	size, err := formatting.ParseBytes(c.MaxBodySize)
	if err != nil {
		return fmt.Errorf("invalid max_body_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_body_size must be positive: %s", c.MaxBodySize)
	}
	return nil
}
