package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the service
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Graph mutation metrics
	EdgesAdded      prometheus.Counter
	EdgesRemoved    prometheus.Counter
	CascadeRemovals prometheus.Counter
	EdgeRejections  *prometheus.CounterVec

	// Read-side metrics
	CriticalPathLength prometheus.Histogram

	// Notification metrics
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter
}

// NewCollector creates a metrics collector with the given namespace.
// Singleton so repeated wiring in tests does not re-register collectors.
func NewCollector(namespace string) *Collector {
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	edgesAdded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_added_total",
			Help:      "Total number of dependency edges added",
		},
	)

	edgesRemoved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_removed_total",
			Help:      "Total number of dependency edges removed",
		},
	)

	cascadeRemovals := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_removals_total",
			Help:      "Total number of task-deletion cascades processed",
		},
	)

	edgeRejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edge_rejections_total",
			Help:      "Total number of rejected edge additions by reason",
		},
		[]string{"reason"},
	)

	criticalPathLength := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "critical_path_length",
			Help:      "Observed critical path lengths in blocking hops",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	eventsPublished := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of graph change events published",
		},
	)

	eventsFailed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of graph change events that failed to publish",
		},
	)

	registry.MustRegister(
		httpRequests,
		httpDuration,
		edgesAdded,
		edgesRemoved,
		cascadeRemovals,
		edgeRejections,
		criticalPathLength,
		eventsPublished,
		eventsFailed,
	)

	globalCollector = &Collector{
		registry:           registry,
		HTTPRequests:       httpRequests,
		HTTPDuration:       httpDuration,
		EdgesAdded:         edgesAdded,
		EdgesRemoved:       edgesRemoved,
		CascadeRemovals:    cascadeRemovals,
		EdgeRejections:     edgeRejections,
		CriticalPathLength: criticalPathLength,
		EventsPublished:    eventsPublished,
		EventsFailed:       eventsFailed,
	}
	return globalCollector
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
