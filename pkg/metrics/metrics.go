// Package metrics provides Prometheus instrumentation for gostream components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for gostream components.
type Registry struct {
	// Stream Metrics
	StreamOperations    *prometheus.CounterVec
	StreamItems         *prometheus.CounterVec
	StreamErrors        *prometheus.CounterVec
	StreamCancellations *prometheus.CounterVec
	StreamLatency       *prometheus.HistogramVec

	// Loop Metrics
	LoopTasks   *prometheus.CounterVec
	LoopPending *prometheus.GaugeVec
	LoopPollers *prometheus.GaugeVec

	// Endpoint Metrics
	ChannelBufferSize  *prometheus.GaugeVec
	ChannelBufferUsage *prometheus.GaugeVec
	BackpressureEvents *prometheus.CounterVec
	WriterWrites       *prometheus.CounterVec
	WriterBytesWritten *prometheus.CounterVec

	// Rate Limiting Metrics
	RateLimitRequests *prometheus.CounterVec
	RateLimitAllowed  *prometheus.CounterVec
	RateLimitDenied   *prometheus.CounterVec
	RateLimitWaitTime *prometheus.HistogramVec

	// Trigger Metrics
	TriggerJobs  *prometheus.GaugeVec
	TriggerFires *prometheus.CounterVec
}

// DefaultRegistry is the registry used by components configured with
// DefaultConfig.
var DefaultRegistry *Registry

var (
	registriesMu sync.Mutex
	registries   = map[registryKey]*Registry{}
)

type registryKey struct {
	reg       prometheus.Registerer
	namespace string
}

func init() {
	DefaultRegistry = For(DefaultConfig())
}

// For returns the Registry for cfg, creating it on first use. Components
// sharing a registerer and namespace share their collectors.
func For(cfg Config) *Registry {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	registriesMu.Lock()
	defer registriesMu.Unlock()

	key := registryKey{reg: cfg.Registry, namespace: cfg.Namespace}
	if r, ok := registries[key]; ok {
		return r
	}
	r := newRegistry(cfg)
	registries[key] = r
	return r
}

// NewRegistry creates a new metrics registry with the given Prometheus
// registerer and the default namespace.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return For(Config{Enabled: true, Registry: reg, Namespace: DefaultNamespace})
}

func newRegistry(cfg Config) *Registry {
	factory := promauto.With(cfg.Registry)

	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels)
	}
	gauge := func(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels)
	}
	histogram := func(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
			Buckets:     prometheus.DefBuckets,
		}, labels)
	}

	return &Registry{
		// Stream Metrics
		StreamOperations: counter("stream", "operations_total",
			"Total number of submitted stream operations", "operation", "stream_name"),
		StreamItems: counter("stream", "items_total",
			"Total number of elements moved by range operations", "operation", "stream_name"),
		StreamErrors: counter("stream", "errors_total",
			"Total number of stream operations that completed with an error", "operation", "stream_name"),
		StreamCancellations: counter("stream", "cancellations_total",
			"Total number of cancelled stream operations", "operation", "stream_name"),
		StreamLatency: histogram("stream", "completion_duration_seconds",
			"Time from submission to completion of stream operations", "operation", "stream_name"),

		// Loop Metrics
		LoopTasks: counter("loop", "tasks_total",
			"Total number of tasks run by the loop", "loop_name"),
		LoopPending: gauge("loop", "pending_tasks",
			"Number of tasks waiting in the ready queue", "loop_name"),
		LoopPollers: gauge("loop", "active_pollers",
			"Number of pollers re-run on every tick", "loop_name"),

		// Endpoint Metrics
		ChannelBufferSize: gauge("channel", "buffer_size",
			"Channel buffer capacity", "channel_name"),
		ChannelBufferUsage: gauge("channel", "buffer_usage",
			"Current channel buffer usage", "channel_name"),
		BackpressureEvents: counter("backpressure", "events_total",
			"Total number of backpressure events", "strategy", "channel_name"),
		WriterWrites: counter("writer", "writes_total",
			"Total number of underlying writes", "writer_name"),
		WriterBytesWritten: counter("writer", "bytes_written_total",
			"Total bytes written", "writer_name"),

		// Rate Limiting Metrics
		RateLimitRequests: counter("ratelimit", "requests_total",
			"Total number of rate limit requests", "limiter_type", "limiter_name"),
		RateLimitAllowed: counter("ratelimit", "allowed_total",
			"Total number of allowed requests", "limiter_type", "limiter_name"),
		RateLimitDenied: counter("ratelimit", "denied_total",
			"Total number of denied requests", "limiter_type", "limiter_name"),
		RateLimitWaitTime: histogram("ratelimit", "wait_duration_seconds",
			"Time spent waiting for rate limit approval", "limiter_type", "limiter_name"),

		// Trigger Metrics
		TriggerJobs: gauge("trigger", "jobs",
			"Number of scheduled jobs", "trigger_name"),
		TriggerFires: counter("trigger", "fires_total",
			"Total number of jobs posted into a loop", "trigger_name"),
	}
}
