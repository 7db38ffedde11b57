// Package metrics exposes Prometheus counters for wallet sessions and the
// HTTP surface, and a server publishing them.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "travelid"

var (
	registerOnce sync.Once

	connects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Wallet connection attempts by outcome.",
		},
		[]string{"outcome"},
	)
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		},
		[]string{"outcome"},
	)
	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "fetches_total",
			Help:      "User record reads by outcome.",
		},
		[]string{"outcome"},
	)
	confirmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "confirmation_duration_seconds",
			Help:      "Time spent waiting for registration transactions to confirm.",
			Buckets:   []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connects, registrations, fetches, confirmDuration, httpRequests, httpDuration)
	})
}

func RecordConnect(outcome string) {
	RegisterMetrics()
	connects.WithLabelValues(outcome).Inc()
}

func RecordRegistration(outcome string) {
	RegisterMetrics()
	registrations.WithLabelValues(outcome).Inc()
}

func RecordFetch(outcome string) {
	RegisterMetrics()
	fetches.WithLabelValues(outcome).Inc()
}

func RecordConfirmation(outcome string, duration time.Duration) {
	RegisterMetrics()
	confirmDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// MetricsServer serves the default Prometheus registry on /metrics.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. The service name is
// exported as a constant label on the build info gauge.
func New(service, addr string) (*MetricsServer, error) {
	RegisterMetrics()

	info := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Constant 1, labelled with the service name.",
		ConstLabels: prometheus.Labels{"service": service},
	})
	if err := prometheus.Register(info); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return nil, err
		}
	} else {
		info.Set(1)
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Handler returns the router serving /metrics.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
