// Package cache provides the byte cache behind layout reuse.
//
// A layout is a pure function of its items, area, spacing and size ceiling,
// so the orchestrator and the HTTP server store computed placements under a
// content-addressed key and skip the packing step when nothing changed.
// Rendered previews are cached the same way.
//
// Three backends implement [Cache]:
//   - [NullCache] never stores anything (caching disabled)
//   - [FileCache] keeps entries as JSON files under a directory (CLI)
//   - [RedisCache] stores entries in Redis (server deployments)
//
// Keys are built by a [Keyer]. [ScopedKeyer] adds a prefix so several worlds
// or tenants can share one backend.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values.
const (
	TTLLayout   = 7 * 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// Cache is a key/value store for opaque byte slices.
type Cache interface {
	// Get returns the value for key. The boolean reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// LayoutKeyOpts holds every layout input other than the items themselves.
type LayoutKeyOpts struct {
	OriginX, OriginY int
	LimitX, LimitY   int

	ItemGap        int
	LetterGroupGap int
	RowGap         int
	SizeGroupGap   int
	SizeCeiling    int
}

// ArtifactKeyOpts identifies a rendered preview.
type ArtifactKeyOpts struct {
	Kind   string // "placement" or "tree"
	Format string // "svg" or "dot"
}

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey returns the key for a layout of the items hashed to itemsHash.
	LayoutKey(itemsHash string, opts LayoutKeyOpts) string

	// ArtifactKey returns the key for a preview rendered from sourceHash.
	ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer builds unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey returns "layout:<sha256>".
func (DefaultKeyer) LayoutKey(itemsHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", itemsHash, opts)
}

// ArtifactKey returns "artifact:<sha256>".
func (DefaultKeyer) ArtifactKey(sourceHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", sourceHash, opts)
}
