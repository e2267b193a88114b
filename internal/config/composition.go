package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/mxn2020/prompt-verse-io/pkg/composition"
	"github.com/mxn2020/prompt-verse-io/pkg/formatting"
)

const (
	EnvCompositionMaxDepth      = "PROMPTVERSE_COMPOSITION_MAX_DEPTH"
	EnvCompositionMaxExpansions = "PROMPTVERSE_COMPOSITION_MAX_EXPANSIONS"
	EnvCompositionMaxOutput     = "PROMPTVERSE_COMPOSITION_MAX_OUTPUT"
)

// CompositionConfig bounds template expansion.
type CompositionConfig struct {
	// MaxDepth limits both module nesting and expansion passes.
	MaxDepth int `toml:"max_depth"`
	// MaxExpansions limits module expansions per resolution.
	MaxExpansions int `toml:"max_expansions"`
	// MaxOutput limits resolved text size, e.g. "1MB".
	MaxOutput string `toml:"max_output"`
}

// MaxOutputBytes returns MaxOutput in bytes. Only meaningful after Finalize.
func (c *CompositionConfig) MaxOutputBytes() int {
	size, _ := formatting.ParseBytes(c.MaxOutput)
	return int(size)
}

// Limits returns the resolution limits for the composition engine.
func (c *CompositionConfig) Limits() composition.Limits {
	return composition.Limits{
		MaxDepth:      c.MaxDepth,
		MaxExpansions: c.MaxExpansions,
		MaxOutput:     c.MaxOutputBytes(),
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *CompositionConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *CompositionConfig) Merge(overlay *CompositionConfig) {
	if overlay.MaxDepth != 0 {
		c.MaxDepth = overlay.MaxDepth
	}
	if overlay.MaxExpansions != 0 {
		c.MaxExpansions = overlay.MaxExpansions
	}
	if overlay.MaxOutput != "" {
		c.MaxOutput = overlay.MaxOutput
	}
}

func (c *CompositionConfig) loadDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = composition.DefaultMaxDepth
	}
	if c.MaxExpansions == 0 {
		c.MaxExpansions = composition.DefaultMaxExpansions
	}
	if c.MaxOutput == "" {
		c.MaxOutput = formatting.FormatBytes(composition.DefaultMaxOutput, 0)
	}
}

func (c *CompositionConfig) loadEnv() {
	if v := os.Getenv(EnvCompositionMaxDepth); v != "" {
		if depth, err := strconv.Atoi(v); err == nil {
			c.MaxDepth = depth
		}
	}
	if v := os.Getenv(EnvCompositionMaxExpansions); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxExpansions = n
		}
	}
	if v := os.Getenv(EnvCompositionMaxOutput); v != "" {
		c.MaxOutput = v
	}
}

func (c *CompositionConfig) validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1: %d", c.MaxDepth)
	}
	if c.MaxExpansions < 1 {
		return fmt.Errorf("max_expansions must be at least 1: %d", c.MaxExpansions)
	}
	size, err := formatting.ParseBytes(c.MaxOutput)
	if err != nil {
		return fmt.Errorf("invalid max_output: %w", err)
	}
	if size < 1 || size > math.MaxInt {
		return fmt.Errorf("max_output out of range: %s", c.MaxOutput)
	}
	return nil
}
