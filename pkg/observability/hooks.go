// Package observability provides hooks for metrics and tracing.
//
// The districting pipeline and the caches emit events through global hook
// registries that default to no-ops, so instrumentation is optional and the
// core packages stay free of observability framework dependencies. Backends
// (OpenTelemetry, Prometheus, plain logging) are registered by main at
// startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
package observability

import (
	"context"
	"sync"
	"time"
)

// PipelineHooks receives events from the districting pipeline stages.
type PipelineHooks interface {
	// Load events cover reading the unit table (GeoJSON or demo grid).
	OnLoadStart(ctx context.Context, source string)
	OnLoadComplete(ctx context.Context, source string, units int, duration time.Duration, err error)

	// Adjacency events cover building the contiguity graph.
	OnAdjacencyStart(ctx context.Context, units int)
	OnAdjacencyComplete(ctx context.Context, edges int, duration time.Duration, err error)

	// Partition events cover the recursive split.
	OnPartitionStart(ctx context.Context, districts int)
	OnPartitionComplete(ctx context.Context, districts int, duration time.Duration, err error)

	// Assemble events cover turning unit groups into district records.
	OnAssembleStart(ctx context.Context, groups int)
	OnAssembleComplete(ctx context.Context, groups int, duration time.Duration, err error)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLoadStart(context.Context, string)                                 {}
func (NoopPipelineHooks) OnLoadComplete(context.Context, string, int, time.Duration, error)   {}
func (NoopPipelineHooks) OnAdjacencyStart(context.Context, int)                               {}
func (NoopPipelineHooks) OnAdjacencyComplete(context.Context, int, time.Duration, error)      {}
func (NoopPipelineHooks) OnPartitionStart(context.Context, int)                               {}
func (NoopPipelineHooks) OnPartitionComplete(context.Context, int, time.Duration, error)      {}
func (NoopPipelineHooks) OnAssembleStart(context.Context, int)                                {}
func (NoopPipelineHooks) OnAssembleComplete(context.Context, int, time.Duration, error)       {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline runs.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
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

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
}
