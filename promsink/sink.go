// Package promsink exposes heartbeat metrics as Prometheus gauges.
package promsink

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reugn/go-heartbeat"
)

// Config holds configuration for the Prometheus sink.
type Config struct {
	// Namespace prefixes every metric name. Defaults to "heartbeat".
	Namespace string
	// Registry the collectors are registered with. A new registry is
	// created if nil.
	Registry *prometheus.Registry
	// RuntimeCollectors registers the Go and process collectors.
	RuntimeCollectors bool
}

// Sink is a heartbeat.Sink publishing each metric as a gauge labeled with
// the metric key. Gauge values are divided by the key scale.
type Sink struct {
	registry *prometheus.Registry
	value    *prometheus.GaugeVec
	raw      *prometheus.GaugeVec
	writes   *prometheus.CounterVec
}

var _ heartbeat.Sink = (*Sink)(nil)

// New creates a Sink and registers its collectors.
func New(config Config) (*Sink, error) {
	namespace := config.Namespace
	if namespace == "" {
		namespace = "heartbeat"
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if config.RuntimeCollectors {
		if err := registry.Register(collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("failed to register Go collector: %w", err)
		}
		if err := registry.Register(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
			return nil, fmt.Errorf("failed to register process collector: %w", err)
		}
	}

	value := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "Latest heartbeat metric value divided by its scale.",
		},
		[]string{"key"},
	)
	raw := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_raw",
			Help:      "Latest heartbeat metric value as reported.",
		},
		[]string{"key"},
	)
	writes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_writes_total",
			Help:      "Total number of heartbeat metric writes.",
		},
		[]string{"key"},
	)
	for _, c := range []prometheus.Collector{value, raw, writes} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register heartbeat collector: %w", err)
		}
	}

	return &Sink{
		registry: registry,
		value:    value,
		raw:      raw,
		writes:   writes,
	}, nil
}

// SetUnsigned sets the gauges for key.
func (s *Sink) SetUnsigned(key heartbeat.Key, value uint32) error {
	if key.Name == "" {
		return fmt.Errorf("empty metric key")
	}
	s.value.WithLabelValues(key.Name).Set(key.Scaled(value))
	s.raw.WithLabelValues(key.Name).Set(float64(value))
	s.writes.WithLabelValues(key.Name).Inc()
	return nil
}

// Registry returns the registry the sink collectors belong to.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
