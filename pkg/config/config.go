// Package config handles vireo.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a vireo.toml optimizer configuration.
type Config struct {
	Input     Input     `toml:"input"`
	Output    Output    `toml:"output"`
	Optimizer Optimizer `toml:"optimizer"`

	// Dir is the directory containing the vireo.toml file (set at load time).
	Dir string `toml:"-"`
}

// Input configures where compiled classes come from.
type Input struct {
	// Image is the compiled class image to optimize.
	Image string `toml:"image"`
	// LibIndex is an optional SQLite index of library class metadata.
	LibIndex string `toml:"lib-index"`
}

// Output configures where results go.
type Output struct {
	Image string `toml:"image"`
}

// Optimizer selects and tunes the optimization passes.
type Optimizer struct {
	// ClosureCalls enables devirtualization of same-method closure calls.
	ClosureCalls bool `toml:"closure-calls"`
	// GlobalInline treats every rewritten callee as inlinable, not just
	// those in the unit being compiled.
	GlobalInline bool `toml:"global-inline"`
	Verbose      bool `toml:"verbose"`
}

// Load parses a vireo.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "vireo.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration with every pass at its default setting.
func Default() *Config {
	return &Config{
		Optimizer: Optimizer{ClosureCalls: true},
	}
}

// Validate checks that the configuration names the files it must.
func (c *Config) Validate() error {
	if c.Input.Image == "" {
		return fmt.Errorf("input.image is required")
	}
	if c.Output.Image == "" {
		return fmt.Errorf("output.image is required")
	}
	return nil
}

// InputImagePath returns the absolute path of the input image.
func (c *Config) InputImagePath() string {
	return c.resolve(c.Input.Image)
}

// OutputImagePath returns the absolute path of the output image.
func (c *Config) OutputImagePath() string {
	return c.resolve(c.Output.Image)
}

// LibIndexPath returns the absolute path of the library index, or "" when
// none is configured.
func (c *Config) LibIndexPath() string {
	if c.Input.LibIndex == "" {
		return ""
	}
	return c.resolve(c.Input.LibIndex)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}
