package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	Registry *prometheus.Registry

	TripTransitions    *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	TripsExpired       prometheus.Counter
	SideEffectErrors   *prometheus.CounterVec
	HTTPErrors         *prometheus.CounterVec
}

// NewMetrics registers the service metrics on a fresh registry
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		TripTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_transitions_total",
			Help:      "Trip lifecycle transitions by operation and result",
		}, []string{"operation", "result"}),
		TransitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trip_transition_duration_seconds",
			Help:      "Time taken by a trip lifecycle transition, transaction included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		TripsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trips_expired_total",
			Help:      "The total number of scheduled trips canceled by the expiry sweep",
		}),
		SideEffectErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_errors_total",
			Help:      "Failed post-commit events and notifications",
		}, []string{"kind"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP responses with a 4xx or 5xx status",
		}, []string{"method", "status"}),
	}
}
