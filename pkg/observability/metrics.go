package observability

import (
	"context"
	"net/http"
	"strconv"

	"github.com/aretw0/mesa/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors fed by lifecycle hooks.
// Each instance owns its registry so several hosts can coexist in one process.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	deliveries *prometheus.CounterVec
	attempts   *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesa_rpc_requests_total",
				Help: "Total number of JSON-RPC requests by agent, method and result code",
			},
			[]string{"agent", "method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mesa_rpc_duration_seconds",
				Help:    "Duration of JSON-RPC dispatches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent", "method"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mesa_update_deliveries_total",
				Help: "Update events handed to consumers by outcome (processed, rejected, failed)",
			},
			[]string{"target", "type", "outcome"},
		),
		attempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mesa_update_attempts",
				Help:    "Delivery attempts per update event",
				Buckets: []float64{1, 2, 3, 5, 8},
			},
			[]string{"target"},
		),
	}
	m.registry.MustRegister(m.requests, m.duration, m.deliveries, m.attempts)
	return m
}

// Registry exposes the underlying registry, mainly for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnResponse: func(ctx context.Context, e *domain.RequestEvent) {
			method := e.Method
			if method == "" {
				method = "unknown"
			}
			m.requests.WithLabelValues(e.Agent, method, strconv.Itoa(e.Code)).Inc()
			m.duration.WithLabelValues(e.Agent, method).Observe(e.Duration.Seconds())
		},
		OnDelivery: func(ctx context.Context, e *domain.DeliveryEvent) {
			m.deliveries.WithLabelValues(e.Target, e.EventType, Outcome(e)).Inc()
			m.attempts.WithLabelValues(e.Target).Observe(float64(e.Attempts))
		},
	}
}

// Outcome classifies a delivery as "processed", "rejected" (NACK) or "failed" (no ack).
func Outcome(e *domain.DeliveryEvent) string {
	switch {
	case e.Err != nil:
		return "failed"
	case e.Processed:
		return "processed"
	default:
		return "rejected"
	}
}
