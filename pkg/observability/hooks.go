// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about orchestration runs, folder mirroring, cache
// operations, and inbound HTTP requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so library packages never
// import an observability backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetMirrorHooks(&myMirrorHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnStageStart(ctx, observability.StageLayout, len(items))
//	// ... compute layout ...
//	observability.Pipeline().OnStageComplete(ctx, observability.StageLayout, placed, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// Stage names an orchestration step.
type Stage string

// Orchestration stages, in execution order.
const (
	StageValidate  Stage = "validate"
	StageClear     Stage = "clear"
	StageFootprint Stage = "footprint"
	StageLayout    Stage = "layout"
	StagePlace     Stage = "place"
	StageArchive   Stage = "archive"
	StageDelete    Stage = "delete"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from an orchestration run.
type PipelineHooks interface {
	// OnStageStart is called before a stage touches count items.
	OnStageStart(ctx context.Context, stage Stage, count int)

	// OnStageComplete is called after a stage, with the number of items it
	// affected and its error, if any.
	OnStageComplete(ctx context.Context, stage Stage, affected int, duration time.Duration, err error)

	// OnActorFailed records a per-actor archive failure that did not abort the run.
	OnActorFailed(ctx context.Context, actorID string, err error)
}

// =============================================================================
// Mirror Hooks
// =============================================================================

// MirrorHooks receives events from archive folder mirroring.
type MirrorHooks interface {
	// OnFolderCreated records a folder created in the archive.
	OnFolderCreated(ctx context.Context, parentID, name, id string)

	// OnFolderReused records a cache hit for an existing archive folder.
	OnFolderReused(ctx context.Context, parentID, name, id string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP server.
type HTTPHooks interface {
	// OnRequest records an inbound HTTP request.
	OnRequest(ctx context.Context, method, path string)

	// OnResponse records the response written for a request.
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageStart(context.Context, Stage, int)                          {}
func (NoopPipelineHooks) OnStageComplete(context.Context, Stage, int, time.Duration, error) {}
func (NoopPipelineHooks) OnActorFailed(context.Context, string, error)                      {}

// NoopMirrorHooks is a no-op implementation of MirrorHooks.
type NoopMirrorHooks struct{}

func (NoopMirrorHooks) OnFolderCreated(context.Context, string, string, string) {}
func (NoopMirrorHooks) OnFolderReused(context.Context, string, string, string)  {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	mirrorHooks   MirrorHooks   = NoopMirrorHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any run.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetMirrorHooks registers custom mirror hooks.
func SetMirrorHooks(h MirrorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		mirrorHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Mirror returns the registered mirror hooks.
func Mirror() MirrorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return mirrorHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	mirrorHooks = NoopMirrorHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
