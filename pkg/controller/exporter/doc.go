// Package exporter implements the controller for the MongoDBExporter resource.
//
// A MongoDBExporter packages the bitnami/mongodb-exporter workload together
// with its observability contracts. The controller's responsibilities include:
//
//   - Connection resolution: Determines where the exporter's MongoDB URI
//     comes from, either the inline spec field or a connection Secret written
//     by a MongoDB provider. Exactly one source must be set; a missing Secret
//     leaves the exporter Waiting, a misconfigured spec leaves it Blocked.
//
//   - Workload management: Creates and maintains the Deployment running
//     mongodb_exporter and the Service fronting its metrics port. A digest of
//     the resolved URI is stamped onto the pod template so connection changes
//     roll the pods.
//
//   - Metrics contract: Publishes a ServiceMonitor so a Prometheus Operator
//     installation discovers the metrics endpoint. Management is skipped
//     entirely when the ServiceMonitor CRD is absent.
//
//   - Dashboard contract: Publishes a ConfigMap carrying the bundled Grafana
//     dashboard, labeled for sidecar discovery.
//
//   - Ingress: Optionally routes an external hostname to the metrics Service.
//
// The controller watches connection Secrets in addition to its owned
// resources, so relation data arriving or changing triggers reconciliation
// without polling.
package exporter
