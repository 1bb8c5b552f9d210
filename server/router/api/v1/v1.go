// Package v1 exposes the admin/diagnostics HTTP surface of the cache:
// health, statistics, per-query-kind metrics, memory pressure, and
// operator-triggered invalidation for schema reloads.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fhirtools/fhirpath-ls/internal/profile"
	"github.com/fhirtools/fhirpath-ls/server/typecache"
)

type APIV1Service struct {
	Profile   *profile.Profile
	TypeCache *typecache.Service
}

func NewAPIV1Service(profile *profile.Profile, tc *typecache.Service) *APIV1Service {
	return &APIV1Service{
		Profile:   profile,
		TypeCache: tc,
	}
}

// RegisterRoutes mounts the API on the echo server.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/cache/stats", s.GetCacheStats)
	g.GET("/cache/memory", s.GetCacheMemory)
	g.GET("/cache/metrics", s.GetCacheMetrics)
	g.POST("/cache/invalidate", s.InvalidateCache)
}

// GetCacheStats returns the engine's aggregate statistics.
// GET /api/v1/cache/stats
func (s *APIV1Service) GetCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.TypeCache.Stats())
}

// GetCacheMemory returns memory pressure against the configured budget.
// GET /api/v1/cache/memory
func (s *APIV1Service) GetCacheMemory(c echo.Context) error {
	return c.JSON(http.StatusOK, s.TypeCache.MemoryUsage())
}

// GetCacheMetrics returns the per-query-kind hit/miss and latency counters.
// GET /api/v1/cache/metrics
func (s *APIV1Service) GetCacheMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.TypeCache.Metrics())
}

// InvalidateCacheResponse reports how many entries an invalidation removed.
type InvalidateCacheResponse struct {
	Type     string `json:"type"`
	Property string `json:"property,omitempty"`
	Removed  int    `json:"removed"`
}

// InvalidateCache invalidates every entry derived from a type, or, when a
// property is given, only the entries scoped to that type+property pair.
// POST /api/v1/cache/invalidate?type=Patient[&property=name]
func (s *APIV1Service) InvalidateCache(c echo.Context) error {
	typeName := c.QueryParam("type")
	if typeName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing type parameter"})
	}

	ctx := c.Request().Context()
	property := c.QueryParam("property")

	var removed int
	if property == "" {
		removed = s.TypeCache.InvalidateType(ctx, typeName)
	} else {
		removed = s.TypeCache.InvalidateProperty(ctx, typeName, property)
	}
	slog.Info("cache invalidation requested", "type", typeName, "property", property, "removed", removed)

	return c.JSON(http.StatusOK, InvalidateCacheResponse{
		Type:     typeName,
		Property: property,
		Removed:  removed,
	})
}
