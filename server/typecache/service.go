// Package typecache is the typed façade over the generic cache engine. It
// owns the cache key schema for type-system queries, derives the dependency
// edges between entries, tracks per-query-kind metrics, and optionally
// warms the cache for a configured set of common types.
//
// Providers (completion, hover, diagnostics) depend on this package only;
// the engine's vocabulary of keys and categories never leaks above it.
package typecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fhirtools/fhirpath-ls/store/cache"
	"github.com/fhirtools/fhirpath-ls/typesystem"
)

// contextTTL bounds expression-scoped choice context entries. They are only
// meaningful within an editing session, so they never outlive one.
const contextTTL = 5 * time.Minute

// WarmupConfig controls cache warm-up at initialization.
type WarmupConfig struct {
	Enabled bool
	Types   []string
	// Concurrency bounds parallel provider queries during warm-up.
	Concurrency int
}

// Service translates domain queries into the engine's key/category/
// dependency vocabulary. Construct it once at server startup and inject it
// into the providers; it holds no global state.
type Service struct {
	engine   *cache.Engine
	provider typesystem.Provider
	logger   *slog.Logger
	warmup   WarmupConfig

	metrics     metricsCollector
	resolves    singleflight.Group
	initialized atomic.Bool
}

// ServiceOption customizes façade construction.
type ServiceOption func(*Service)

// WithLogger sets the façade logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithWarmup enables warm-up during Initialize.
func WithWarmup(cfg WarmupConfig) ServiceOption {
	return func(s *Service) { s.warmup = cfg }
}

// NewService creates the façade. The provider is only consulted on the
// resolve paths and during warm-up, never on a cache hit.
func NewService(engine *cache.Engine, provider typesystem.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		engine:   engine,
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize prepares the façade. It is idempotent: a second call is a
// no-op. When warm-up is configured it pre-populates entries for the common
// type list; individual warm-up failures are logged and skipped.
func (s *Service) Initialize(ctx context.Context) error {
	if !s.initialized.CompareAndSwap(false, true) {
		return nil
	}
	if s.warmup.Enabled && len(s.warmup.Types) > 0 {
		s.warmUp(ctx)
	}
	return nil
}

// GetTypeInfo returns the cached base descriptor for a type name.
func (s *Service) GetTypeInfo(ctx context.Context, name string) (*typesystem.TypeInfo, bool) {
	return getCached[typesystem.TypeInfo](s, ctx, typeKey(name), cache.CategoryTypeInfo, &s.metrics.typeInfo)
}

// PutTypeInfo caches the base descriptor for a type name.
func (s *Service) PutTypeInfo(ctx context.Context, name string, info *typesystem.TypeInfo) {
	putCached(s, ctx, typeKey(name), cache.CategoryTypeInfo, info, cache.SetOptions{})
}

// GetEnhancedTypeInfo returns the cached enriched descriptor for a type.
func (s *Service) GetEnhancedTypeInfo(ctx context.Context, name string) (*typesystem.EnhancedTypeInfo, bool) {
	return getCached[typesystem.EnhancedTypeInfo](s, ctx, enhancedKey(name), cache.CategoryTypeInfo, &s.metrics.enhancedType)
}

// PutEnhancedTypeInfo caches the enriched descriptor for a type. The entry
// depends on the base type entry: invalidating the type takes it along.
func (s *Service) PutEnhancedTypeInfo(ctx context.Context, name string, info *typesystem.EnhancedTypeInfo) {
	putCached(s, ctx, enhancedKey(name), cache.CategoryTypeInfo, info, cache.SetOptions{
		Dependencies: []string{typeDependency(name)},
	})
}

// GetPropertyPath returns the cached resolution of a dotted property path
// from a root type.
func (s *Service) GetPropertyPath(ctx context.Context, rootType, path string) (*typesystem.PathResolution, bool) {
	return getCached[typesystem.PathResolution](s, ctx, pathKey(rootType, path), cache.CategoryPropertyPaths, &s.metrics.propertyPath)
}

// PutPropertyPath caches a property-path resolution. Depends on the root
// type.
func (s *Service) PutPropertyPath(ctx context.Context, rootType, path string, res *typesystem.PathResolution) {
	putCached(s, ctx, pathKey(rootType, path), cache.CategoryPropertyPaths, res, cache.SetOptions{
		Dependencies: []string{typeDependency(rootType)},
	})
}

// GetChoiceTypes returns the cached choice-type resolution for a base type,
// optionally narrowed to a target type. An empty target means "all".
func (s *Service) GetChoiceTypes(ctx context.Context, baseType, target string) (*typesystem.ChoiceResolution, bool) {
	return getCached[typesystem.ChoiceResolution](s, ctx, choiceKey(baseType, target), cache.CategoryChoiceTypes, &s.metrics.choiceType)
}

// PutChoiceTypes caches a choice-type resolution.
func (s *Service) PutChoiceTypes(ctx context.Context, baseType, target string, res *typesystem.ChoiceResolution) {
	putCached(s, ctx, choiceKey(baseType, target), cache.CategoryChoiceTypes, res, cache.SetOptions{})
}

// GetChoiceContext returns the cached expression-scoped choice context for
// resource.property.
func (s *Service) GetChoiceContext(ctx context.Context, resourceType, property string) (*typesystem.ChoiceContext, bool) {
	return getCached[typesystem.ChoiceContext](s, ctx, contextKey(resourceType, property), cache.CategoryChoiceTypes, &s.metrics.choiceType)
}

// PutChoiceContext caches an expression-scoped choice context with a
// session-scale TTL.
func (s *Service) PutChoiceContext(ctx context.Context, resourceType, property string, cc *typesystem.ChoiceContext) {
	putCached(s, ctx, contextKey(resourceType, property), cache.CategoryChoiceTypes, cc, cache.SetOptions{
		TTL: contextTTL,
	})
}

// GetChoiceValidation returns the cached validation outcome for a
// resource.property pair.
func (s *Service) GetChoiceValidation(ctx context.Context, resourceType, property string) (*typesystem.ChoiceValidation, bool) {
	return getCached[typesystem.ChoiceValidation](s, ctx, validationKey(resourceType, property), cache.CategoryValidations, &s.metrics.validation)
}

// PutChoiceValidation caches a validation outcome. Depends on the resource
// type.
func (s *Service) PutChoiceValidation(ctx context.Context, resourceType, property string, v *typesystem.ChoiceValidation) {
	putCached(s, ctx, validationKey(resourceType, property), cache.CategoryValidations, v, cache.SetOptions{
		Dependencies: []string{typeDependency(resourceType)},
	})
}

// InvalidateType removes every entry derived from typeName: the base and
// enhanced descriptors, plus all path, choice, context and validation
// entries rooted at it. Each key family is invalidated independently so a
// failure in one pattern does not block the others, then dependency edges
// catch anything the patterns missed. Returns the number of entries
// removed.
func (s *Service) InvalidateType(ctx context.Context, typeName string) int {
	count := 0
	count += s.engine.Invalidate(ctx, typeKey(typeName))
	count += s.engine.Invalidate(ctx, enhancedKey(typeName))
	count += s.engine.Invalidate(ctx, "path:"+typeName+":*")
	count += s.engine.Invalidate(ctx, "choice:"+typeName+":*")
	count += s.engine.Invalidate(ctx, "context:"+typeName+".*")
	count += s.engine.Invalidate(ctx, "validation:"+typeName+":*")
	count += s.engine.InvalidateByDependency(ctx, typeDependency(typeName))

	s.logger.Info("invalidated cached type", "type", typeName, "entries", count)
	return count
}

// InvalidateProperty removes only the path and validation entries scoped to
// the exact type+property pair. Returns the number of entries removed.
func (s *Service) InvalidateProperty(ctx context.Context, typeName, property string) int {
	count := 0
	count += s.engine.Invalidate(ctx, pathKey(typeName, property))
	count += s.engine.Invalidate(ctx, pathKey(typeName, property)+".*")
	count += s.engine.Invalidate(ctx, validationKey(typeName, property))
	return count
}

// Metrics returns the per-query-kind counters.
func (s *Service) Metrics() Metrics {
	return s.metrics.snapshot()
}

// Stats returns the underlying engine's aggregate statistics.
func (s *Service) Stats() cache.Stats {
	return s.engine.Stats()
}

// MemoryUsage returns the underlying engine's memory pressure snapshot.
func (s *Service) MemoryUsage() cache.MemoryUsage {
	return s.engine.MemoryUsage()
}

// getCached reads and decodes one cached value, recording a hit or miss
// with its latency. A corrupt cached value degrades to a miss.
func getCached[T any](s *Service, ctx context.Context, key string, category cache.Category, counter *queryCounter) (*T, bool) {
	start := time.Now()
	data, ok := s.engine.Get(ctx, key, category)
	elapsed := time.Since(start)
	if !ok {
		s.metrics.recordMiss(counter, elapsed)
		return nil, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		s.logger.Warn("corrupt cached value", "key", key, "error", err)
		s.metrics.recordMiss(counter, elapsed)
		return nil, false
	}
	s.metrics.recordHit(counter, elapsed)
	return &value, true
}

// putCached serializes and stores one value. Serialization failures are
// logged and swallowed; caching never fails observably.
func putCached[T any](s *Service, ctx context.Context, key string, category cache.Category, value *T, opts cache.SetOptions) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("failed to serialize cache value", "key", key, "error", err)
		return
	}
	s.engine.Set(ctx, key, data, category, opts)
}
