package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirtools/fhirpath-ls/internal/profile"
	"github.com/fhirtools/fhirpath-ls/server/typecache"
	"github.com/fhirtools/fhirpath-ls/store/cache"
	"github.com/fhirtools/fhirpath-ls/typesystem"
)

func newTestAPI(t *testing.T) (*echo.Echo, *typecache.Service) {
	t.Helper()

	cfg := cache.DefaultConfig()
	cfg.CleanupInterval = 0
	engine := cache.NewEngine(cfg)
	t.Cleanup(func() { require.NoError(t, engine.Close()) })

	tc := typecache.NewService(engine, typesystem.CoreProvider())

	e := echo.New()
	NewAPIV1Service(&profile.Profile{Mode: "demo"}, tc).RegisterRoutes(e)
	return e, tc
}

func TestGetCacheStats(t *testing.T) {
	e, tc := newTestAPI(t)
	ctx := context.Background()

	tc.PutTypeInfo(ctx, "Patient", &typesystem.TypeInfo{Name: "Patient"})
	tc.GetTypeInfo(ctx, "Patient")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestGetCacheMemory(t *testing.T) {
	e, tc := newTestAPI(t)
	tc.PutTypeInfo(context.Background(), "Patient", &typesystem.TypeInfo{Name: "Patient"})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/memory", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var usage cache.MemoryUsage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Positive(t, usage.Used)
	assert.Positive(t, usage.Limit)
}

func TestGetCacheMetrics(t *testing.T) {
	e, tc := newTestAPI(t)
	tc.GetTypeInfo(context.Background(), "Patient")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var m typecache.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, int64(1), m.TypeInfo.Misses)
}

func TestInvalidateCache(t *testing.T) {
	t.Run("ByType", func(t *testing.T) {
		e, tc := newTestAPI(t)
		ctx := context.Background()
		tc.PutTypeInfo(ctx, "Patient", &typesystem.TypeInfo{Name: "Patient"})
		tc.PutPropertyPath(ctx, "Patient", "name", &typesystem.PathResolution{RootType: "Patient", Path: "name"})

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate?type=Patient", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp InvalidateCacheResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Patient", resp.Type)
		assert.Equal(t, 2, resp.Removed)

		_, ok := tc.GetTypeInfo(ctx, "Patient")
		assert.False(t, ok)
	})

	t.Run("ByProperty", func(t *testing.T) {
		e, tc := newTestAPI(t)
		ctx := context.Background()
		tc.PutTypeInfo(ctx, "Patient", &typesystem.TypeInfo{Name: "Patient"})
		tc.PutPropertyPath(ctx, "Patient", "name", &typesystem.PathResolution{RootType: "Patient", Path: "name"})

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate?type=Patient&property=name", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp InvalidateCacheResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Removed)

		_, ok := tc.GetTypeInfo(ctx, "Patient")
		assert.True(t, ok, "the type entry itself is untouched")
	})

	t.Run("MissingType", func(t *testing.T) {
		e, _ := newTestAPI(t)

		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
