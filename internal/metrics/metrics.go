// Package metrics provides Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsTotal counts processed bets, partitioned by side slot.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_bets_total",
		Help: "Total number of bets processed",
	}, []string{"side"})

	// BetLatency is a histogram of bet processing latency.
	BetLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_bet_latency_seconds",
		Help:    "Bet processing latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// ActiveEvents tracks the number of open events.
	ActiveEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_active_events",
		Help: "Number of currently open events",
	})

	// SettlementsTotal counts settlement batch runs by outcome.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_settlements_total",
		Help: "Total settlement batch runs",
	}, []string{"outcome"})

	// SimulationCeilingHits counts growth simulations that hit the
	// iteration ceiling before reaching the final cap.
	SimulationCeilingHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_simulation_ceiling_hits_total",
		Help: "Growth simulations stopped at the iteration ceiling",
	})

	// StakeLimitRejections counts bets rejected by the stake limiter.
	StakeLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_stake_limit_rejections_total",
		Help: "Bets rejected by stake limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
