// Package metrics provides Prometheus instrumentation for gridtrader.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts completed simulations by outcome (ok|error).
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridtrader_runs_total",
		Help: "Backtest runs by outcome",
	}, []string{"outcome"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridtrader_run_duration_seconds",
		Help:    "Backtest run duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// TradesTotal counts executions, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridtrader_trades_total",
		Help: "Trades executed",
	}, []string{"side"})

	LevelsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridtrader_levels_completed_total",
		Help: "Grid levels that completed a round trip",
	})

	// PaperOrders counts paper broker order status changes.
	PaperOrders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridtrader_paper_orders_total",
		Help: "Paper broker order status changes",
	}, []string{"status"})

	EndingCapital = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridtrader_ending_capital",
		Help: "Ending capital of the last run",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridtrader_websocket_clients",
		Help: "Connected websocket clients",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridtrader_http_requests_total",
		Help: "HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridtrader_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration. The path label is the raw
// URL path; the API has a fixed set of routes.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer cannot hijack")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
