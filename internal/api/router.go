package api

import (
	"net/http"

	"tanks/internal/broadcast"
	"tanks/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig contains all dependencies needed to construct the HTTP
// router. Designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Manager: manager,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000,
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Manager owns every running match (required).
	Manager *MatchManager

	// Hub fans match events out to WebSocket viewers (required for /ws).
	Hub *broadcast.Hub

	// Limits bounds submission sizes reported back on overflow.
	Limits config.ResourceLimits

	// RateLimiter is an optional pre-configured rate limiter. If nil, a
	// new one is built from RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default allowed origins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware, useful for
	// benchmarks.
	DisableLogging bool
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// No listeners are opened. The only goroutine started is the rate
// limiter's cleanup loop, and only when cfg.RateLimiter is nil. Safe to
// use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &apiHandlers{manager: cfg.Manager, limits: cfg.Limits}

	r.Get("/health", h.handleHealth)

	r.Route("/api/matches", func(r chi.Router) {
		r.Get("/", h.handleListMatches)
		r.Post("/", h.handleCreateMatch)
		r.Get("/{matchID}", h.handleGetMatch)
		r.Delete("/{matchID}", h.handleStopMatch)
	})

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		cfg.Hub.HandleWebSocket(w, req, GetClientIP(req))
	})

	return r
}
