package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Prometheus configuration
	MetricsPath string // HTTP path for metrics endpoint (default: /metrics)
	MetricsPort int    // Port for metrics server (default: 9090)

	// Metric options
	Namespace        string    // Prometheus namespace (default: mcp)
	Subsystem        string    // Prometheus subsystem
	HistogramBuckets []float64 // Custom histogram buckets for latency

	// Labels to add to all metrics
	ConstLabels prometheus.Labels
}

// MetricsProvider records connection manager activity for Prometheus.
type MetricsProvider interface {
	// Record dispatch operations
	RecordRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordNotification(ctx context.Context, method, status string)

	// Record lifecycle events
	RecordConnect(ctx context.Context, transport, status string, duration time.Duration)
	RecordReconnectAttempt(ctx context.Context, serverName, status string)
	RecordHeartbeatFailure(ctx context.Context, serverName string)
	RecordConnectionStatus(ctx context.Context, serverName, status string)
	RecordActiveConnections(ctx context.Context, delta int)

	// Record event fan-out
	RecordDroppedEvent(ctx context.Context)

	// Management
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus
type PrometheusMetricsProvider struct {
	config   MetricsConfig
	registry *prometheus.Registry
	server   *http.Server

	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	notificationTotal *prometheus.CounterVec

	connectDuration   *prometheus.HistogramVec
	reconnectTotal    *prometheus.CounterVec
	heartbeatFailures *prometheus.CounterVec
	connectionStatus  *prometheus.GaugeVec
	activeConnections prometheus.Gauge

	droppedEvents prometheus.Counter
}

// NewMetricsProvider creates a new Prometheus metrics provider
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	// Set defaults
	if config.Namespace == "" {
		config.Namespace = "mcp"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.MetricsPort == 0 {
		config.MetricsPort = 9090
	}
	if config.HistogramBuckets == nil {
		// Default buckets for milliseconds
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}

	if config.ConstLabels == nil {
		config.ConstLabels = prometheus.Labels{}
	}
	if config.ServiceName != "" {
		config.ConstLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		config.ConstLabels["version"] = config.ServiceVersion
	}
	if config.Environment != "" {
		config.ConstLabels["environment"] = config.Environment
	}

	provider := &PrometheusMetricsProvider{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	provider.initializeMetrics()

	if err := provider.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return provider, nil
}

// initializeMetrics creates all metric collectors
func (p *PrometheusMetricsProvider) initializeMetrics() {
	p.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "request_duration_milliseconds",
			Help:        "Duration of dispatched requests in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "request_total",
			Help:        "Total number of dispatched requests",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.notificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "notification_total",
			Help:        "Total number of dispatched notifications",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"method", "status"},
	)

	p.connectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "connect_duration_milliseconds",
			Help:        "Duration of connection establishment in milliseconds",
			Buckets:     p.config.HistogramBuckets,
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"transport", "status"},
	)

	p.reconnectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "reconnect_attempts_total",
			Help:        "Total number of reconnection attempts",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"server", "status"},
	)

	p.heartbeatFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "heartbeat_failures_total",
			Help:        "Total number of failed heartbeat probes",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"server"},
	)

	p.connectionStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "connection_status",
			Help:        "Current connection status per server (1=current status)",
			ConstLabels: p.config.ConstLabels,
		},
		[]string{"server", "status"},
	)

	p.activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "active_connections",
			Help:        "Number of active connections",
			ConstLabels: p.config.ConstLabels,
		},
	)

	p.droppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   p.config.Namespace,
			Subsystem:   p.config.Subsystem,
			Name:        "dropped_events_total",
			Help:        "Total number of lifecycle events dropped by slow subscribers",
			ConstLabels: p.config.ConstLabels,
		},
	)
}

// registerMetrics registers all metrics with the provider registry
func (p *PrometheusMetricsProvider) registerMetrics() error {
	collectors := []prometheus.Collector{
		p.requestDuration,
		p.requestTotal,
		p.notificationTotal,
		p.connectDuration,
		p.reconnectTotal,
		p.heartbeatFailures,
		p.connectionStatus,
		p.activeConnections,
		p.droppedEvents,
	}

	for _, collector := range collectors {
		if err := p.registry.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// RecordRequest records a dispatched request
func (p *PrometheusMetricsProvider) RecordRequest(ctx context.Context, method, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.requestDuration.WithLabelValues(method, status).Observe(ms)
	p.requestTotal.WithLabelValues(method, status).Inc()
}

// RecordNotification records a dispatched notification
func (p *PrometheusMetricsProvider) RecordNotification(ctx context.Context, method, status string) {
	p.notificationTotal.WithLabelValues(method, status).Inc()
}

// RecordConnect records a connection establishment attempt
func (p *PrometheusMetricsProvider) RecordConnect(ctx context.Context, transport, status string, duration time.Duration) {
	ms := float64(duration.Milliseconds())
	p.connectDuration.WithLabelValues(transport, status).Observe(ms)
}

// RecordReconnectAttempt records one reconnection attempt
func (p *PrometheusMetricsProvider) RecordReconnectAttempt(ctx context.Context, serverName, status string) {
	p.reconnectTotal.WithLabelValues(serverName, status).Inc()
}

// RecordHeartbeatFailure records a failed liveness probe
func (p *PrometheusMetricsProvider) RecordHeartbeatFailure(ctx context.Context, serverName string) {
	p.heartbeatFailures.WithLabelValues(serverName).Inc()
}

// RecordConnectionStatus records the current status of one connection
func (p *PrometheusMetricsProvider) RecordConnectionStatus(ctx context.Context, serverName, status string) {
	for _, s := range []string{"establishing", "connected", "reconnecting", "error", "closed"} {
		p.connectionStatus.WithLabelValues(serverName, s).Set(0)
	}
	p.connectionStatus.WithLabelValues(serverName, status).Set(1)
}

// RecordActiveConnections records the change in active connections
func (p *PrometheusMetricsProvider) RecordActiveConnections(ctx context.Context, delta int) {
	if delta > 0 {
		p.activeConnections.Add(float64(delta))
	} else {
		p.activeConnections.Sub(float64(-delta))
	}
}

// RecordDroppedEvent records a lifecycle event dropped by a slow subscriber
func (p *PrometheusMetricsProvider) RecordDroppedEvent(ctx context.Context) {
	p.droppedEvents.Inc()
}

// Handler exposes the provider registry for embedding in an existing mux.
func (p *PrometheusMetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Start starts the metrics HTTP server
func (p *PrometheusMetricsProvider) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(p.config.MetricsPath, p.Handler())

	p.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", p.config.MetricsPort),
		Handler: mux,
	}

	go func() {
		_ = p.server.ListenAndServe()
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server
func (p *PrometheusMetricsProvider) Shutdown(ctx context.Context) error {
	if p.server != nil {
		return p.server.Shutdown(ctx)
	}
	return nil
}
