// Package server assembles the backend: the cache engine, the typed cache
// façade, and the admin HTTP surface. The composition root (cmd) owns the
// lifecycle; nothing here is a process-wide singleton.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/fhirtools/fhirpath-ls/internal/profile"
	apiv1 "github.com/fhirtools/fhirpath-ls/server/router/api/v1"
	"github.com/fhirtools/fhirpath-ls/server/typecache"
	"github.com/fhirtools/fhirpath-ls/store/cache"
	"github.com/fhirtools/fhirpath-ls/typesystem"
)

// Server hosts the admin HTTP surface over an explicitly injected cache
// engine and façade.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	engine     *cache.Engine
	typeCache  *typecache.Service
}

// NewServer wires the HTTP surface. The engine and façade are constructed
// by the caller so their lifecycle stays at the composition root.
func NewServer(p *profile.Profile, engine *cache.Engine, tc *typecache.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestIDMiddleware)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiv1.NewAPIV1Service(p, tc).RegisterRoutes(e)

	return &Server{
		Profile:    p,
		echoServer: e,
		engine:     engine,
		typeCache:  tc,
	}
}

// Start initializes the façade (including any configured warm-up) and
// begins serving. It returns once the listener is up or failed.
func (s *Server) Start(ctx context.Context) error {
	if err := s.typeCache.Initialize(ctx); err != nil {
		return errors.Wrap(err, "failed to initialize type cache")
	}

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	started := make(chan error, 1)
	go func() {
		started <- s.echoServer.Start(address)
	}()

	select {
	case err := <-started:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "failed to listen on %s", address)
		}
		return nil
	case <-time.After(100 * time.Millisecond):
		slog.Info("admin server listening", "address", address)
		return nil
	}
}

// Shutdown stops the HTTP server, runs a final cleanup pass, and closes the
// cache engine (stopping its cleanup loop and the durable tier).
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown http server", "error", err)
	}

	s.engine.Cleanup(ctx)
	if err := s.engine.Close(); err != nil {
		slog.Error("failed to close cache engine", "error", err)
	}

	slog.Info("server shutdown complete")
}

// requestIDMiddleware tags every request with an ID for log correlation.
func requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)
		c.Set("request_id", requestID)
		return next(c)
	}
}

// CacheConfigFromProfile maps profile settings to the engine configuration.
func CacheConfigFromProfile(p *profile.Profile) cache.Config {
	cfg := cache.DefaultConfig()
	if p.CacheMemoryBudget > 0 {
		cfg.MemoryBudget = p.CacheMemoryBudget
	}
	if p.CacheDurableBudget > 0 {
		cfg.DurableBudget = p.CacheDurableBudget
	}
	if p.CacheDefaultTTL > 0 {
		cfg.DefaultTTL = p.CacheDefaultTTL
	}
	if p.CacheCleanupInterval > 0 {
		cfg.CleanupInterval = p.CacheCleanupInterval
	}
	for name, ttl := range p.CacheCategoryTTL {
		cfg.CategoryTTL[cache.Category(name)] = ttl
	}
	cfg.DurableEnabled = p.CacheDurableEnabled
	cfg.MetricsEnabled = p.CacheMetricsEnabled
	return cfg
}

// WarmupConfigFromProfile maps profile settings to the façade warm-up
// configuration.
func WarmupConfigFromProfile(p *profile.Profile) typecache.WarmupConfig {
	return typecache.WarmupConfig{
		Enabled: p.WarmupEnabled && p.WarmupOnStartup,
		Types:   p.WarmupTypes,
	}
}

// DefaultProvider returns the type-model provider used until a schema
// package backend is configured.
func DefaultProvider() typesystem.Provider {
	return typesystem.CoreProvider()
}
