package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/layout"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// flagKeys maps flag names that differ from their config key.
var flagKeys = map[string]string{
	"item-gap":     "spacing.item",
	"letter-gap":   "spacing.letter_group",
	"row-gap":      "spacing.row",
	"group-gap":    "spacing.size_group",
	"no-cache":     "cache.disabled",
	"cache-dir":    "cache.dir",
	"redis":        "cache.redis",
	"addr":         "server.addr",
	"display-mode": "display_mode",
}

// Defaults returns the built-in settings as a flat koanf map.
func Defaults() map[string]any {
	return map[string]any{
		"archive":              DefaultArchive,
		"target":               pipeline.DefaultArchiveTarget,
		"move":                 false,
		"delete":               false,
		"no_clear":             false,
		"allow_partial":        false,
		"spacing.item":         layout.DefaultItemGap,
		"spacing.letter_group": layout.DefaultLetterGroupGap,
		"spacing.row":          layout.DefaultRowGap,
		"spacing.size_group":   layout.DefaultSizeGroupGap,
		"size_ceiling":         0,
		"display_mode":         pipeline.DefaultDisplayMode,
		"cache.disabled":       false,
		"cache.dir":            "",
		"cache.redis":          "",
		"cache.prefix":         "",
		"server.addr":          DefaultServerAddr,
		"verbose":              false,
	}
}

// Load merges defaults, the config file, the environment and flags.
// An empty path falls back to DefaultConfigFile when it exists. flags may
// be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "load defaults")
	}

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "parse config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "load environment")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return FlagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FlagKey returns the config key a flag name sets.
func FlagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// envKey turns TOKENFIELD_SPACING__ROW into spacing.row.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Describe renders the effective settings for `tokenfield config`.
func (c *Config) Describe() [][2]string {
	cache := "file"
	switch {
	case c.Cache.Disabled:
		cache = "disabled"
	case c.Cache.Redis != "":
		cache = "redis"
	}
	return [][2]string{
		{"archive", c.Archive},
		{"target", c.Target},
		{"move", fmt.Sprint(c.Move)},
		{"delete", fmt.Sprint(c.Delete)},
		{"no_clear", fmt.Sprint(c.NoClear)},
		{"allow_partial", fmt.Sprint(c.AllowPartial)},
		{"spacing", fmt.Sprintf("item=%d letter=%d row=%d group=%d",
			c.Spacing.Item, c.Spacing.LetterGroup, c.Spacing.Row, c.Spacing.SizeGroup)},
		{"size_ceiling", fmt.Sprint(c.SizeCeiling)},
		{"display_mode", fmt.Sprint(c.DisplayMode)},
		{"cache", cache},
		{"server.addr", c.Server.Addr},
	}
}
