// Package config loads tokenfield settings.
//
// Settings are merged from four layers, later layers winning:
//
//  1. built-in defaults
//  2. a YAML file (--config, or tokenfield.yaml in the working directory)
//  3. TOKENFIELD_* environment variables; a double underscore separates
//     nested keys, so TOKENFIELD_SPACING__ROW sets spacing.row
//  4. command-line flags the user actually set
package config

import (
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/layout"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// Default values.
const (
	DefaultArchive    = "memory:"
	DefaultServerAddr = ":8080"
	DefaultConfigFile = "tokenfield.yaml"
	EnvPrefix         = "TOKENFIELD_"
)

// Config holds every tokenfield setting.
type Config struct {
	// Archive is the archive store DSN: memory:, sqlite:<path> or mongodb://...
	Archive string `koanf:"archive"`
	Target  string `koanf:"target"`

	Move         bool `koanf:"move"`
	Delete       bool `koanf:"delete"`
	NoClear      bool `koanf:"no_clear"`
	AllowPartial bool `koanf:"allow_partial"`

	Spacing     layout.Spacing `koanf:"spacing"`
	SizeCeiling int            `koanf:"size_ceiling"`
	DisplayMode int            `koanf:"display_mode"`

	Cache   CacheConfig  `koanf:"cache"`
	Server  ServerConfig `koanf:"server"`
	Verbose bool         `koanf:"verbose"`
}

// CacheConfig selects the layout cache backend.
type CacheConfig struct {
	Disabled bool   `koanf:"disabled"`
	Dir      string `koanf:"dir"`   // FileCache directory, XDG cache dir when empty
	Redis    string `koanf:"redis"` // redis:// URL; takes precedence over Dir
	Prefix   string `koanf:"prefix"`
}

// ServerConfig configures `tokenfield serve`.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// Validate checks the merged settings. Every failure is a CONFIGURATION
// error.
func (c *Config) Validate() error {
	if c.Archive == "" {
		return errors.New(errors.ErrCodeConfiguration, "archive DSN is required")
	}
	if err := c.Spacing.Validate(); err != nil {
		return err
	}
	if c.SizeCeiling < 0 {
		return errors.New(errors.ErrCodeConfiguration, "size_ceiling must not be negative, got %d", c.SizeCeiling)
	}
	if err := pipeline.ValidateDisplayMode(c.DisplayMode); err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, err, "display_mode")
	}
	if c.Move {
		if err := errors.ValidateArchiveTarget(c.Target); err != nil {
			return errors.Wrap(errors.ErrCodeConfiguration, err, "target")
		}
	}
	return nil
}

// PipelineOptions maps the settings onto run options.
func (c *Config) PipelineOptions() pipeline.Options {
	sp := c.Spacing
	dm := c.DisplayMode
	return pipeline.Options{
		KeepExisting:    c.NoClear,
		MoveToArchive:   c.Move,
		DeleteOriginals: c.Delete,
		ArchiveTarget:   c.Target,
		AllowPartial:    c.AllowPartial,
		Spacing:         &sp,
		SizeCeiling:     c.SizeCeiling,
		DisplayMode:     &dm,
	}
}
