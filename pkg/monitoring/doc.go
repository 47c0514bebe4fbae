// Package monitoring provides Prometheus metrics and tracing helpers for
// the MongoDB Exporter Operator. It exposes domain-specific gauges and
// counters that complement the generic controller-runtime metrics already
// registered by the framework.
//
// All metrics follow the naming convention
// mongodb_exporter_operator_<metric>_<unit> and are registered against
// controller-runtime's default Prometheus registry on import.
//
// Usage in controllers:
//
//	monitoring.SetExporterInfo(exp.Name, exp.Namespace, string(exp.Status.Phase))
//	monitoring.SetExporterReplicas(exp.Name, exp.Namespace, desired, ready)
//
// Usage in webhooks:
//
//	monitoring.RecordWebhookRequest("CREATE", "MongoDBExporter", err, elapsed)
package monitoring
