// Package config handles sable.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up next to sources.
const FileName = "sable.toml"

// Config represents a sable.toml file.
type Config struct {
	VM    VMConfig    `toml:"vm"`
	Cache CacheConfig `toml:"cache"`
	Log   LogConfig   `toml:"log"`

	// Path is the file the configuration was loaded from; empty for defaults.
	Path string `toml:"-"`
}

// VMConfig bounds a single run.
type VMConfig struct {
	MaxFrames  int   `toml:"max_frames"`
	MaxStack   int   `toml:"max_stack"`
	StepBudget int64 `toml:"step_budget"` // 0 = unlimited
}

// CacheConfig selects the compile cache store. An empty driver disables it.
type CacheConfig struct {
	Driver string `toml:"driver"` // sqlite | postgres
	DSN    string `toml:"dsn"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		VM: VMConfig{
			MaxFrames: 1024,
			MaxStack:  1 << 16,
		},
	}
}

// Load parses the configuration file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if _, err := toml.Decode(string(data), c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// A relative sqlite file is kept next to the config file.
	if c.Cache.Driver == "sqlite" && c.Cache.DSN != "" && c.Cache.DSN != ":memory:" && !filepath.IsAbs(c.Cache.DSN) {
		if !hasScheme(c.Cache.DSN) {
			c.Cache.DSN = filepath.Join(filepath.Dir(c.Path), c.Cache.DSN)
		}
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a sable.toml file and loads
// it. Defaults are returned if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// Validate rejects settings no component can honour.
func (c *Config) Validate() error {
	if c.VM.MaxFrames < 0 || c.VM.MaxStack < 0 || c.VM.StepBudget < 0 {
		return fmt.Errorf("vm limits must not be negative")
	}
	switch c.Cache.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown cache driver %q (want sqlite or postgres)", c.Cache.Driver)
	}
	if c.Cache.Driver != "" && c.Cache.DSN == "" {
		return fmt.Errorf("cache driver %q needs a dsn", c.Cache.Driver)
	}
	return nil
}

func hasScheme(dsn string) bool {
	for i := 0; i < len(dsn); i++ {
		switch c := dsn[i]; {
		case c == ':':
			return i > 0
		case c == '/' || c == '\\' || c == '.':
			return false
		}
	}
	return false
}
