package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all sinkforge Prometheus metrics.
type Metrics struct {
	BuildsTotal      *prometheus.CounterVec
	BuildDuration    *prometheus.HistogramVec
	TopicsCreated    prometheus.Counter
	SchemasPublished prometheus.Counter
}

// NewMetrics creates and registers all sinkforge metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BuildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sinkforge_connector_builds_total",
			Help: "Sink connector builds by destination kind and outcome.",
		}, []string{"kind", "status"}),

		BuildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sinkforge_connector_build_duration_seconds",
			Help:    "Time spent provisioning one sink connector.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		TopicsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "sinkforge_topics_created_total",
			Help: "Topics created in the broker for sinks.",
		}),

		SchemasPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "sinkforge_schemas_published_total",
			Help: "Schemas published to the registry for sinks.",
		}),
	}
}
