package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Data keys the PrometheusObserver reads.
const (
	// DataDuration is an elapsed time in milliseconds (int64).
	DataDuration = "duration_ms"
	// DataOutcome is a low-cardinality result label (string).
	DataOutcome = "outcome"
)

// PrometheusObserver turns events into metrics on its own registry:
//
//	<ns>_events_total{type,level}
//	<ns>_event_outcomes_total{type,outcome}   when Data has "outcome"
//	<ns>_event_duration_seconds{type}         when Data has "duration_ms"
type PrometheusObserver struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusObserver creates an observer whose metrics live under
// namespace. Go runtime and process collectors are registered alongside.
func NewPrometheusObserver(namespace string) *PrometheusObserver {
	reg := prometheus.NewRegistry()

	o := &PrometheusObserver{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of observed events",
		}, []string{"type", "level"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_outcomes_total",
			Help:      "Total number of events by outcome",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Duration reported by timed events in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}

	reg.MustRegister(
		o.events,
		o.outcomes,
		o.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

func (o *PrometheusObserver) OnEvent(_ context.Context, event Event) {
	t := string(event.Type)
	o.events.WithLabelValues(t, event.Level.String()).Inc()

	if outcome, ok := event.Data[DataOutcome].(string); ok && outcome != "" {
		o.outcomes.WithLabelValues(t, outcome).Inc()
	}

	if d, ok := durationOf(event.Data[DataDuration]); ok {
		o.duration.WithLabelValues(t).Observe(d.Seconds())
	}
}

// Registry returns the registry holding the observer's metrics.
func (o *PrometheusObserver) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func durationOf(v any) (time.Duration, bool) {
	switch ms := v.(type) {
	case int64:
		return time.Duration(ms) * time.Millisecond, true
	case int:
		return time.Duration(ms) * time.Millisecond, true
	case float64:
		return time.Duration(ms * float64(time.Millisecond)), true
	case time.Duration:
		return ms, true
	}
	return 0, false
}
