package typecache

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fhirtools/fhirpath-ls/typesystem"
)

var errTypeNotFound = errors.New("type not found")

// ResolveType returns the descriptor for a type name, reading through the
// cache. Concurrent misses for the same type are coalesced into a single
// provider call.
func (s *Service) ResolveType(ctx context.Context, name string) (*typesystem.TypeInfo, bool) {
	if info, ok := s.GetTypeInfo(ctx, name); ok {
		return info, true
	}

	v, err, _ := s.resolves.Do(typeKey(name), func() (any, error) {
		info, ok := s.provider.ResolveType(ctx, name)
		if !ok {
			return nil, errTypeNotFound
		}
		s.PutTypeInfo(ctx, name, info)
		return info, nil
	})
	if err != nil {
		return nil, false
	}
	return v.(*typesystem.TypeInfo), true
}

// ResolveEnhancedType returns the enriched descriptor for a type, reading
// through the cache and coalescing concurrent misses. Building the enriched
// shape costs one provider call per property, which is exactly the work the
// cache exists to avoid repeating.
func (s *Service) ResolveEnhancedType(ctx context.Context, name string) (*typesystem.EnhancedTypeInfo, bool) {
	if info, ok := s.GetEnhancedTypeInfo(ctx, name); ok {
		return info, true
	}

	v, err, _ := s.resolves.Do(enhancedKey(name), func() (any, error) {
		base, ok := s.provider.ResolveType(ctx, name)
		if !ok {
			return nil, errTypeNotFound
		}
		enhanced := &typesystem.EnhancedTypeInfo{TypeInfo: *base}
		for _, prop := range s.provider.ListProperties(ctx, name) {
			info := typesystem.PropertyInfo{Name: prop}
			if propType, ok := s.provider.ResolveProperty(ctx, name, prop); ok {
				info.Type = propType.Name
			}
			enhanced.Properties = append(enhanced.Properties, info)
		}
		s.PutEnhancedTypeInfo(ctx, name, enhanced)
		return enhanced, nil
	})
	if err != nil {
		return nil, false
	}
	return v.(*typesystem.EnhancedTypeInfo), true
}

// warmUp pre-resolves the configured common types. Failures for individual
// types are logged and do not abort the rest.
func (s *Service) warmUp(ctx context.Context) {
	concurrency := s.warmup.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, name := range s.warmup.Types {
		name := name
		g.Go(func() error {
			if _, ok := s.ResolveType(gctx, name); !ok {
				s.logger.Warn("cache warm-up skipped unknown type", "type", name)
				return nil
			}
			if _, ok := s.ResolveEnhancedType(gctx, name); !ok {
				s.logger.Warn("cache warm-up failed to enhance type", "type", name)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("type cache warm-up finished", "types", len(s.warmup.Types))
}
