package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collab",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"service", "method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "collab",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "collab",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	}, []string{"service"})

	// LiveSessions counts sessions with at least one connected participant.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collab",
		Name:      "live_sessions",
		Help:      "Sessions with at least one connected participant",
	})

	Participants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collab",
		Name:      "participants",
		Help:      "Connected participants across all sessions",
	})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collab",
		Name:      "events_total",
		Help:      "Inbound websocket events by type and outcome",
	}, []string{"event", "outcome"})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collab",
		Name:      "broadcasts_total",
		Help:      "Outbound room events by type",
	}, []string{"event"})

	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collab",
		Name:      "dropped_frames_total",
		Help:      "Frames dropped because a connection's outbound queue was full or closed",
	})

	RelayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collab",
		Name:      "relay_messages_total",
		Help:      "Room events exchanged with other instances over redis",
	}, []string{"direction"})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required for the websocket upgrade to pass through the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("collab metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics. Paths are labelled by chi route pattern
// so session ids do not blow up label cardinality.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.WithLabelValues(service).Inc()
			defer httpInFlight.WithLabelValues(service).Dec()

			next.ServeHTTP(rec, r)

			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}
			labels := prometheus.Labels{
				"service": service,
				"method":  r.Method,
				"path":    path,
				"status":  strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
