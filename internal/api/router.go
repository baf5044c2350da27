// Package api provides the HTTP API for uvconsensus.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/uvconsensus/uvconsensus/internal/api/handler"
	"github.com/uvconsensus/uvconsensus/internal/api/middleware"
	"github.com/uvconsensus/uvconsensus/internal/api/response"
)

// Service is the UV service as seen by the HTTP layer. *uv.Service implements it.
type Service interface {
	handler.UVService
	handler.OpsService
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	ServiceName string
	Logger      zerolog.Logger

	Service Service
	Health  handler.HealthSource // provider circuit state, usually *resilience.Registry
	Cache   handler.Pinger       // shared cache probed by readiness (optional)
	Metrics *middleware.Metrics  // optional

	CORSAllowedOrigins []string
	RequireTLS         bool

	// UVRateLimit limits GET /v1/uv per client IP (default 60/min).
	UVRateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "uvconsensus-api"
	}
	uvLimit := cfg.UVRateLimit
	if uvLimit.RequestLimit <= 0 {
		uvLimit = middleware.DefaultUVRateLimit
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins}))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		// Every route is read-only.
		response.MethodNotAllowed(w, r, "method "+r.Method+" is not supported for "+r.URL.Path, http.MethodGet)
	})

	uvHandler := handler.NewUVHandler(cfg.Service, cfg.Logger)
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Service:   cfg.Service,
		Health:    cfg.Health,
		Cache:     cfg.Cache,
	})

	r.Get("/health", opsHandler.Health)

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.RateLimitByIP(uvLimit)).Get("/uv", uvHandler.GetUV)
		r.Get("/providers", uvHandler.ListProviders)

		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})
	})

	return r
}
