package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the prometheus collectors recorded while synthesizing
// invokers. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	createdTotal      *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec
	sinkFailuresTotal prometheus.Counter

	// Histograms
	createDuration prometheus.Histogram
	artifactBytes  prometheus.Histogram

	// Gauges
	loaderStrategy *prometheus.GaugeVec
}

// Default histogram buckets for creation time, in seconds.
var defaultBuckets = []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .5}

// New builds a metrics set on a private registry.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		createdTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invokers_created_total",
				Help:      "Total number of invokers created, by naming policy",
			},
			[]string{"naming"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoker_create_failures_total",
				Help:      "Total number of failed invoker creations, by failing stage",
			},
			[]string{"stage"},
		),

		sinkFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoker_sink_failures_total",
				Help:      "Total number of artifacts the diagnostic sink failed to record",
			},
		),

		createDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invoker_create_duration_seconds",
				Help:      "Time to synthesize, load and instantiate one invoker",
				Buckets:   defaultBuckets,
			},
		),

		artifactBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invoker_artifact_bytes",
				Help:      "Size of generated class files in bytes",
				Buckets:   prometheus.ExponentialBuckets(128, 2, 8),
			},
		),

		loaderStrategy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_strategy",
				Help:      "Loading strategy selected by probing (1 = selected)",
			},
			[]string{"strategy"},
		),
	}

	registry.MustRegister(
		m.createdTotal,
		m.failuresTotal,
		m.sinkFailuresTotal,
		m.createDuration,
		m.artifactBytes,
		m.loaderStrategy,
	)
	return m
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics set, registering the Go and
// process collectors alongside it.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New("invokergen")
		defaultMetrics.registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	})
	return defaultMetrics
}

// RecordCreated records a successful creation.
func (m *Metrics) RecordCreated(naming string, d time.Duration, artifactSize int) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(naming).Inc()
	m.createDuration.Observe(d.Seconds())
	m.artifactBytes.Observe(float64(artifactSize))
}

// RecordFailure records a creation that failed at stage.
func (m *Metrics) RecordFailure(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(stage).Inc()
	m.createDuration.Observe(d.Seconds())
}

// RecordSinkFailure counts an artifact the diagnostic sink could not write.
func (m *Metrics) RecordSinkFailure() {
	if m == nil {
		return
	}
	m.sinkFailuresTotal.Inc()
}

// SetLoaderStrategy marks name as the selected loading strategy.
func (m *Metrics) SetLoaderStrategy(name string) {
	if m == nil {
		return
	}
	m.loaderStrategy.Reset()
	m.loaderStrategy.WithLabelValues(name).Set(1)
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
