package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "finresolve"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	providerCalls *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	breakerOpen   prometheus.Gauge
	breakerTrips  prometheus.Counter
	enrichments   *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	eventsSent    *prometheus.CounterVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		providerCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "calls_total",
				Help:      "Provider calls by outcome (ok, empty, timeout, error, invalid)",
			},
			[]string{"provider", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10, 15},
			},
			[]string{"operation"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by layer and result",
			},
			[]string{"layer", "result"},
		),
		breakerOpen: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "open",
				Help:      "1 while the merge circuit breaker is open",
			},
		),
		breakerTrips: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "trips_total",
				Help:      "Number of closed to open transitions",
			},
		),
		enrichments: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "enrichment",
				Name:      "candidates_total",
				Help:      "Enrichment attempts by outcome",
			},
			[]string{"outcome"},
		),
		resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Resolutions by outcome (asset, disambiguation, empty)",
			},
			[]string{"outcome"},
		),
		eventsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "sent_total",
				Help:      "Resolution events delivered per backend",
			},
			[]string{"backend"},
		),
	}
}

// RecordProviderCall records the outcome of one provider request.
func (r *Recorder) RecordProviderCall(provider, outcome string) {
	r.providerCalls.WithLabelValues(provider, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCacheLookup records a hit or miss on a cache layer.
func (r *Recorder) RecordCacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(layer, result).Inc()
}

// RecordBreakerState tracks the breaker gauge and counts trips.
func (r *Recorder) RecordBreakerState(open bool) {
	if open {
		r.breakerOpen.Set(1)
		r.breakerTrips.Inc()
		return
	}
	r.breakerOpen.Set(0)
}

// RecordEnrichment records one candidate's enrichment outcome.
func (r *Recorder) RecordEnrichment(outcome string) {
	r.enrichments.WithLabelValues(outcome).Inc()
}

// RecordResolution records the final outcome of a resolution.
func (r *Recorder) RecordResolution(outcome string) {
	r.resolutions.WithLabelValues(outcome).Inc()
}

// RecordEventSent records a resolution event delivered to a backend.
func (r *Recorder) RecordEventSent(backend string) {
	r.eventsSent.WithLabelValues(backend).Inc()
}
