// Package cli implements the tokenfield command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tokenfield/internal/config"
	"github.com/matzehuels/tokenfield/pkg/archive"
	"github.com/matzehuels/tokenfield/pkg/cache"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "tokenfield"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before every command runs.
	Config *config.Config

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. Closing the runner
// closes its cache.
func (c *CLI) newRunner(ctx context.Context, deps pipeline.Collaborators) (*pipeline.Runner, error) {
	cc, keyer, err := c.openCache(ctx)
	if err != nil {
		return nil, err
	}
	if deps.Notifier == nil {
		deps.Notifier = consoleNotifier{}
	}
	return pipeline.NewRunner(deps, cc, keyer, c.Logger), nil
}

// openCache opens the configured cache backend and the keyer that scopes
// entries to cache.prefix.
func (c *CLI) openCache(ctx context.Context) (cache.Cache, cache.Keyer, error) {
	cc, err := newCache(ctx, c.Config.Cache)
	if err != nil {
		return nil, nil, err
	}
	keyer := cache.NewDefaultKeyer()
	if c.Config.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, c.Config.Cache.Prefix)
	}
	return cc, keyer, nil
}

// newCache picks the layout cache backend: none, Redis, or files under the
// cache directory.
func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch {
	case cfg.Disabled:
		return cache.NewNullCache(), nil
	case cfg.Redis != "":
		rc, err := cache.NewRedisCache(ctx, cfg.Redis, appName+":")
		if err != nil {
			return nil, fmt.Errorf("connect layout cache: %w", err)
		}
		return rc, nil
	}
	dir := cfg.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// openArchive connects to the configured archive store.
func (c *CLI) openArchive(ctx context.Context) (archive.Store, error) {
	store, err := archive.Open(ctx, c.Config.Archive)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", c.Config.Archive, err)
	}
	c.Logger.Debug("opened archive", "dsn", c.Config.Archive)
	return store, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/tokenfield/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Notifier
// =============================================================================

// consoleNotifier shows run messages as status lines.
type consoleNotifier struct{}

func (consoleNotifier) Info(msg string)  { printInfo("%s", msg) }
func (consoleNotifier) Warn(msg string)  { printWarning("%s", msg) }
func (consoleNotifier) Error(msg string) { printError("%s", msg) }
