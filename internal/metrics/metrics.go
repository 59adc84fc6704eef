package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Saga-level counters, labelled by outcome so compensations are
	// visible next to the happy path.
	Reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_reservations_total",
			Help: "Stock reservation attempts by outcome",
		},
		[]string{"outcome"}, // reserved | insufficient | error
	)

	Compensations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Compensating actions triggered by reason",
		},
		[]string{"reason"},
	)

	DeadLetters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letters_total",
			Help: "Messages published to a DLQ topic",
		},
		[]string{"topic"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook events by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: applied | duplicate | rejected
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, Reservations, Compensations, DeadLetters, WebhookEvents)
}

// Middleware records request counts and latency per route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		httpDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(ww.Status())).Inc()
	})
}

func Handler() http.Handler { return promhttp.Handler() }
