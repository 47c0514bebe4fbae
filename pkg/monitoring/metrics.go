package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Domain-specific metric collectors.
//
// These complement the generic controller-runtime metrics (reconcile counts,
// durations, work queue depth, etc.) with operator-specific state that the
// framework cannot know about.
var (
	exporterInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mongodb_exporter_operator_exporter_info",
			Help: "Info-style metric for MongoDBExporter discovery and phase tracking. Always 1.",
		},
		[]string{"name", "namespace", "phase"},
	)

	exporterReplicas = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mongodb_exporter_operator_exporter_replicas",
			Help: "Exporter deployment replica counts.",
		},
		[]string{"name", "namespace", "state"},
	)

	sourceResolutionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongodb_exporter_operator_source_resolution_total",
			Help: "Total number of MongoDB connection source resolutions by origin and result.",
		},
		[]string{"origin", "result"},
	)

	webhookRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mongodb_exporter_operator_webhook_request_total",
			Help: "Total number of webhook admission requests.",
		},
		[]string{"operation", "resource", "result"},
	)

	webhookRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mongodb_exporter_operator_webhook_request_duration_seconds",
			Help:    "Latency of webhook admission handling in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "resource"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		exporterInfo,
		exporterReplicas,
		sourceResolutionTotal,
		webhookRequestTotal,
		webhookRequestDuration,
	)
}

// Collectors returns all registered metric collectors. This is useful for
// testing that metrics are properly registered.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		exporterInfo,
		exporterReplicas,
		sourceResolutionTotal,
		webhookRequestTotal,
		webhookRequestDuration,
	}
}
