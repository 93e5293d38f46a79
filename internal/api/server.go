package api

import (
	"log"
	"net/http"

	"tanks/internal/broadcast"
	"tanks/internal/config"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API surface with WebSocket viewer support.
type Server struct {
	manager     *MatchManager
	hub         *broadcast.Hub
	router      *chi.Mux
	rateLimiter *IPRateLimiter
}

// NewServer creates a new API server with default production
// configuration.
//
// The HTTP listener and the hub's fan-out loop do not start until Start()
// is called, so tests can construct the server and use Router() without
// them; the rate limiter's cleanup goroutine does start here.
func NewServer(manager *MatchManager, hub *broadcast.Hub, limits config.ResourceLimits) *Server {
	s := &Server{manager: manager, hub: hub}
	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)

	s.router = NewRouter(RouterConfig{
		Manager:     manager,
		Hub:         hub,
		Limits:      limits,
		RateLimiter: s.rateLimiter,
	})

	return s
}

// Start begins the HTTP server and the broadcast hub's fan-out loop. This
// is the only method that opens network listeners.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	log.Printf("tanks API server starting on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop performs graceful shutdown of background workers and every running
// match.
func (s *Server) Stop() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.manager.StopAll()
}
