// Package metrics provides Prometheus instrumentation for the betting engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// StakesTotal counts accepted stakes, partitioned by side.
	StakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvestbet_stakes_total",
		Help: "Total number of stakes accepted",
	}, []string{"side"})

	// StakeLatency tracks stake placement latency.
	StakeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvestbet_stake_latency_seconds",
		Help:    "Stake placement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// OpenMarkets tracks the number of open markets.
	OpenMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvestbet_open_markets",
		Help: "Number of currently open markets",
	})

	// SettlementsTotal counts settled markets, partitioned by outcome.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvestbet_settlements_total",
		Help: "Total number of markets settled",
	}, []string{"outcome"})

	// CharityFeesTotal accumulates charity fees skimmed at settlement.
	CharityFeesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvestbet_charity_fees_total",
		Help: "Cumulative charity fees in currency units",
	})

	// StakeLimitRejections counts stakes rejected by the stake limiter.
	StakeLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvestbet_stake_limit_rejections_total",
		Help: "Stakes rejected by the stake limiter",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvestbet_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvestbet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvestbet_http_request_duration_seconds",
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
