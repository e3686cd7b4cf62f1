package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search subsystem Prometheus metrics.
var (
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchcore",
			Name:      "backend_requests_total",
			Help:      "Total number of search backend calls",
		},
		[]string{"backend", "op", "status"},
	)

	BackendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchcore",
			Name:      "backend_request_duration_seconds",
			Help:      "Search backend call duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend", "op"},
	)

	IndexingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchcore",
			Name:      "indexing_failures_total",
			Help:      "Index writes that failed and were swallowed",
		},
		[]string{"object_type", "kind"}, // kind: created / updated / deleted
	)

	MappingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchcore",
			Name:      "mapping_errors_total",
			Help:      "Fields dropped because their value could not be coerced",
		},
		[]string{"object_type", "field"},
	)

	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchcore",
			Name:      "rebuilds_total",
			Help:      "Index rebuilds by outcome",
		},
		[]string{"object_type", "status"}, // status: ok / failed / rejected
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "searchcore",
			Name:      "queue_depth",
			Help:      "Pending events in the indexing queue",
		},
	)
)

var searchMetricsRegistered bool

// Register registers the HTTP and search subsystem metrics. Must be called once from main.
func Register() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendRequestsTotal)
	prometheus.MustRegister(BackendRequestDuration)
	prometheus.MustRegister(IndexingFailuresTotal)
	prometheus.MustRegister(MappingErrorsTotal)
	prometheus.MustRegister(RebuildsTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpInFlight)
	searchMetricsRegistered = true
}
