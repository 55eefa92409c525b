package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	initializationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderline_initializations_total",
			Help: "Order initializations by outcome",
		},
		[]string{"outcome"},
	)

	completionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderline_step_completions_total",
			Help: "Step completions by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveInitialization records one initializer run.
func ObserveInitialization(outcome string) {
	initializationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records one completion run.
func ObserveCompletion(outcome string) {
	completionsTotal.WithLabelValues(outcome).Inc()
}

// Middleware counts and times every request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the prometheus endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
