package monitoring

import "time"

// SetExporterInfo sets the info-style gauge for a MongoDBExporter.
// Old phase labels are automatically cleaned up via DeletePartialMatch.
func SetExporterInfo(name, namespace, phase string) {
	exporterInfo.DeletePartialMatch(map[string]string{
		"name":      name,
		"namespace": namespace,
	})
	exporterInfo.WithLabelValues(name, namespace, phase).Set(1)
}

// SetExporterReplicas sets the desired and ready replica gauges for an exporter.
func SetExporterReplicas(name, namespace string, desired, ready int32) {
	exporterReplicas.WithLabelValues(name, namespace, "desired").Set(float64(desired))
	exporterReplicas.WithLabelValues(name, namespace, "ready").Set(float64(ready))
}

// DeleteExporterMetrics removes all gauge series for a deleted exporter so
// stale label sets do not linger in the scrape output.
func DeleteExporterMetrics(name, namespace string) {
	labels := map[string]string{
		"name":      name,
		"namespace": namespace,
	}
	exporterInfo.DeletePartialMatch(labels)
	exporterReplicas.DeletePartialMatch(labels)
}

// RecordSourceResolution records the outcome of a MongoDB connection source
// resolution. Origin is "config", "relation", or "none" when resolution failed
// before an origin was determined.
func RecordSourceResolution(origin string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	sourceResolutionTotal.WithLabelValues(origin, result).Inc()
}

// RecordWebhookRequest records a webhook admission request's result and duration.
func RecordWebhookRequest(operation, resource string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	webhookRequestTotal.WithLabelValues(operation, resource, result).Inc()
	webhookRequestDuration.WithLabelValues(operation, resource).Observe(duration.Seconds())
}
