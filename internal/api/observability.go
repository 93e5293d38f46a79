package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-tank or per-match labels, to
// keep the label space finite regardless of how many matches run).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tanks_tick_duration_seconds",
		Help:    "Time spent in one sim.Step call",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02},
	})

	actionResolutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tanks_action_resolution_seconds",
		Help:    "Time from an action's TankAPI call to its ActionCompleteEvent being resolved",
		Buckets: prometheus.DefBuckets,
	})

	forfeitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tanks_forfeits_total",
		Help: "Player forfeits by cause",
	}, []string{"reason"}) // bounded: "error", "timeout"

	prngDrawsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanks_prng_draws_total",
		Help: "Total Random() draws across all matches",
	})

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanks_event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanks_event_log_dropped_total",
		Help: "Events dropped by the event log's rate limiters",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tanks_connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tanks_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tanks_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tanks_websocket_connections_active",
		Help: "Currently active WebSocket viewer connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tanks_websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be loopback-only in production
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the internal observability server.
// CRITICAL: this must bind to localhost only, since pprof endpoints are a
// DoS vector if exposed externally.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("debug server starting on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("debug server error: %v", err)
		}
	}()

	return nil
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records one sim.Step's wall-clock duration.
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// RecordActionResolution records the latency between an action starting
// and its completion being resolved back to the caller.
func RecordActionResolution(duration time.Duration) {
	actionResolutionLatency.Observe(duration.Seconds())
}

// RecordForfeit increments the forfeit counter. reason is "error" or
// "timeout".
func RecordForfeit(reason string) {
	forfeitsTotal.WithLabelValues(reason).Inc()
}

// RecordPRNGDraw increments the PRNG draw counter.
func RecordPRNGDraw() {
	prngDrawsTotal.Inc()
}

// UpdateEventLogStats accepts the log's lifetime counters but records
// nothing: tanks_event_log_total and tanks_event_log_dropped_total are not
// updated by it, and nothing in this repository calls it.
func UpdateEventLogStats(total, dropped uint64) {
	_ = total
	_ = dropped
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates the WebSocket connection gauge.
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments the WebSocket message counter.
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
