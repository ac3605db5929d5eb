// Package metrics provides Prometheus instrumentation for the OddsSync
// ledger.
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
	// BetsTotal counts accepted bets, partitioned by origin (local or
	// crossdomain).
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsync_bets_total",
		Help: "Total number of bets accepted",
	}, []string{"origin"})

	// BetRejections counts rejected bet placements by taxonomy code.
	BetRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsync_bet_rejections_total",
		Help: "Bet placements rejected, by error code",
	}, []string{"code"})

	// CrossDomainDeliveries counts inbound cross-domain messages by result.
	CrossDomainDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsync_crossdomain_deliveries_total",
		Help: "Inbound cross-domain bet deliveries, by result",
	}, []string{"result"}) // applied, duplicate, rejected

	// MarketsCreated counts markets created on this domain.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oddsync_markets_created_total",
		Help: "Total markets created",
	})

	// MarketsResolved counts markets resolved on this domain.
	MarketsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oddsync_markets_resolved_total",
		Help: "Total markets resolved",
	})

	// ActiveMarkets tracks the number of open markets.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oddsync_active_markets",
		Help: "Number of currently open markets",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oddsync_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oddsync_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oddsync_http_request_duration_seconds",
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

		// Use the raw path for the label; routes here are low-cardinality.
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
