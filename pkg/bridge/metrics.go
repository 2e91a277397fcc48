package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aria-bridge/bridge-go/pkg/connection"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// MetricsConfig configures the client's Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "aria_bridge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "client").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for control handler duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) { c.ConstLabels = labels }
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = registry }
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "aria_bridge",
		Subsystem: "client",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connectAttempts   *prometheus.CounterVec
	state             prometheus.Gauge
	connected         prometheus.Gauge
	reconnects        prometheus.Counter
	heartbeatTimeouts prometheus.Counter
	eventsSent        *prometheus.CounterVec
	eventsDropped     prometheus.Counter
	bufferDepth       prometheus.Gauge
	controlRequests   *prometheus.CounterVec
	controlDuration   prometheus.Histogram
}

// NewMetrics creates and registers the client metrics.
//
// Metrics collected (default namespace and subsystem):
//   - aria_bridge_client_connect_attempts_total{stage,result}
//   - aria_bridge_client_state (numeric supervisor state)
//   - aria_bridge_client_connected (1 while a session is live)
//   - aria_bridge_client_reconnects_total
//   - aria_bridge_client_heartbeat_timeouts_total
//   - aria_bridge_client_events_sent_total{type}
//   - aria_bridge_client_events_dropped_total
//   - aria_bridge_client_buffer_depth
//   - aria_bridge_client_control_requests_total{result}
//   - aria_bridge_client_control_duration_seconds
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if len(config.Buckets) == 0 {
		config.Buckets = prometheus.DefBuckets
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		connectAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connect_attempts_total",
			Help:        "Connection attempts by failing stage and result",
			ConstLabels: config.ConstLabels,
		}, []string{"stage", "result"}),

		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state",
			Help:        "Current supervisor state (0=idle .. 7=stopped)",
			ConstLabels: config.ConstLabels,
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connected",
			Help:        "1 while a session is connected",
			ConstLabels: config.ConstLabels,
		}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnects_total",
			Help:        "Sessions established after the first one",
			ConstLabels: config.ConstLabels,
		}),

		heartbeatTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "heartbeat_timeouts_total",
			Help:        "Sessions torn down because no ping or pong arrived in time",
			ConstLabels: config.ConstLabels,
		}),

		eventsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_sent_total",
			Help:        "Application events written to the transport",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_dropped_total",
			Help:        "Events evicted from a full outbound buffer",
			ConstLabels: config.ConstLabels,
		}),

		bufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "buffer_depth",
			Help:        "Events waiting in the outbound buffer",
			ConstLabels: config.ConstLabels,
		}),

		controlRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "control_requests_total",
			Help:        "Control requests by result (ok, error, panic, unhandled, unsent)",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		controlDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "control_duration_seconds",
			Help:        "Control handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

func (m *Metrics) recordConnectFailure(stage Stage, kind ErrorKind) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(string(stage), kind.String()).Inc()
}

func (m *Metrics) recordConnected(reconnect bool) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues("connected", "ok").Inc()
	if reconnect {
		m.reconnects.Inc()
	}
}

func (m *Metrics) recordState(s connection.State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
	if s == connection.StateConnected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) recordHeartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Inc()
}

func (m *Metrics) recordSent(t wire.Type) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) recordDrop() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

func (m *Metrics) recordBufferDepth(n int) {
	if m == nil {
		return
	}
	m.bufferDepth.Set(float64(n))
}

func (m *Metrics) recordControl(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.controlRequests.WithLabelValues(result).Inc()
	if d > 0 {
		m.controlDuration.Observe(d.Seconds())
	}
}
