package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gmsec"

// Metrics contains the metrics shared by every component of the module
type Metrics struct {
	// Specification metrics
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec

	// Connection manager metrics
	MessagesPublished *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	PublishErrors     *prometheus.CounterVec

	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	HealthCheckStatus *prometheus.GaugeVec
	ErrorsTotal       *prometheus.CounterVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "specification",
				Name:      "validations_total",
				Help:      "Message validations by schema ID and result",
			},
			[]string{"schema", "result"},
		),

		ValidationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "specification",
				Name:      "validation_duration_seconds",
				Help:      "Time spent validating one message",
				Buckets:   []float64{.00001, .0001, .001, .01, .1},
			},
			[]string{"schema"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Messages published by subject",
			},
			[]string{"subject"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Messages delivered to subscribers by subscription and status",
			},
			[]string{"subscription", "status"},
		),

		PublishErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "publish_errors_total",
				Help:      "Failed publish attempts by reason",
			},
			[]string{"reason"},
		),

		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "status",
				Help:      "Service state (0=created, 1=setting up, 2=running, 3=tearing down, 4=stopped)",
			},
			[]string{"service"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordValidation counts one validation outcome
func (c *Metrics) RecordValidation(schemaID string, valid bool, duration time.Duration) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	c.ValidationsTotal.WithLabelValues(schemaID, result).Inc()
	c.ValidationDuration.WithLabelValues(schemaID).Observe(duration.Seconds())
}

// RecordMessagePublished increments the published counter
func (c *Metrics) RecordMessagePublished(subject string) {
	c.MessagesPublished.WithLabelValues(subject).Inc()
}

// RecordMessageReceived increments the received counter
func (c *Metrics) RecordMessageReceived(subscription, status string) {
	c.MessagesReceived.WithLabelValues(subscription, status).Inc()
}

// RecordPublishError increments the publish error counter
func (c *Metrics) RecordPublishError(reason string) {
	c.PublishErrors.WithLabelValues(reason).Inc()
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
