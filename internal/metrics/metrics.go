package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrotation_request_total",
			Help: "Number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyrotation_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	Degraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "keyrotation_store_degraded",
			Help: "1 while the fallback store is serving requests",
		},
	)

	FallbackOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrotation_fallback_operations_total",
			Help: "Store operations served by the fallback store",
		},
		[]string{"op"},
	)

	SyncReplayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keyrotation_sync_replayed_total",
			Help: "Journal entries replayed into the primary store",
		},
	)

	SyncFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "keyrotation_sync_failures_total",
			Help: "Sync runs that stopped on an error",
		},
	)

	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyrotation_workflow_transitions_total",
			Help: "Workflow step completions and status changes",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RequestTotal,
		RequestDuration,
		Degraded,
		FallbackOps,
		SyncReplayed,
		SyncFailures,
		WorkflowTransitions,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by their chi route pattern, which keeps ids
// out of the label values.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
