// Package metrics provides dispatch metrics for the method registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives dispatch measurements. The registry only depends on this
// interface so embedders can plug their own telemetry.
type Recorder interface {
	RecordCall(method, outcome string, d time.Duration)
	RecordCastFailure(method string)
	RecordHookFailure(method, hook string)
	RecordRateLimited(method string)
	SetRegisteredMethods(n int)
}

// Collector is a Prometheus-backed Recorder with its own registry.
type Collector struct {
	registry *prometheus.Registry

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	castFailures *prometheus.CounterVec
	hookFailures *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	registered   prometheus.Gauge
}

// NewCollector creates a collector whose metrics live under namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "castrpc"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "calls_total",
			Help:      "Total number of dispatched calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	c.callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "call_duration_seconds",
			Help:      "Time from dispatch until the caller observed an outcome",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method", "outcome"},
	)

	c.castFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "param_validation_failures_total",
			Help:      "Calls rejected while binding arguments",
		},
		[]string{"method"},
	)

	c.hookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "hook_failures_total",
			Help:      "Post-call hooks that returned an error or panicked",
		},
		[]string{"method", "hook"},
	)

	c.rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "rate_limited_total",
			Help:      "Calls rejected by the per-method rate limiter",
		},
		[]string{"method"},
	)

	c.registered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "methods",
			Help:      "Number of registered methods",
		},
	)

	c.registry.MustRegister(
		c.calls,
		c.callDuration,
		c.castFailures,
		c.hookFailures,
		c.rateLimited,
		c.registered,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordCall records one settled call.
func (c *Collector) RecordCall(method, outcome string, d time.Duration) {
	c.calls.WithLabelValues(method, outcome).Inc()
	c.callDuration.WithLabelValues(method, outcome).Observe(d.Seconds())
}

// RecordCastFailure records a call rejected during argument binding.
func (c *Collector) RecordCastFailure(method string) {
	c.castFailures.WithLabelValues(method).Inc()
}

// RecordHookFailure records a failing hook.
func (c *Collector) RecordHookFailure(method, hook string) {
	c.hookFailures.WithLabelValues(method, hook).Inc()
}

// RecordRateLimited records a throttled call.
func (c *Collector) RecordRateLimited(method string) {
	c.rateLimited.WithLabelValues(method).Inc()
}

// SetRegisteredMethods sets the registered methods gauge.
func (c *Collector) SetRegisteredMethods(n int) {
	c.registered.Set(float64(n))
}

// NoOpCollector discards all measurements.
type NoOpCollector struct{}

// NewNoOpCollector creates a no-op collector.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordCall(method, outcome string, d time.Duration) {}
func (*NoOpCollector) RecordCastFailure(method string)                    {}
func (*NoOpCollector) RecordHookFailure(method, hook string)              {}
func (*NoOpCollector) RecordRateLimited(method string)                    {}
func (*NoOpCollector) SetRegisteredMethods(n int)                         {}
