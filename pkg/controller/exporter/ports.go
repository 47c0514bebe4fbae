package exporter

import (
	corev1 "k8s.io/api/core/v1"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
)

// MetricsPortName is the named port shared by the container, the Service and
// the scrape configuration.
const MetricsPortName = "metrics"

// DefaultPort is the port mongodb_exporter listens on by default.
const DefaultPort int32 = 9216

// exporterPort returns the configured metrics port, falling back to the
// exporter's default.
func exporterPort(exp *charmsv1alpha1.MongoDBExporter) int32 {
	if exp.Spec.Port != 0 {
		return exp.Spec.Port
	}
	return DefaultPort
}

// buildContainerPorts returns the ports exposed by the exporter container.
func buildContainerPorts(exp *charmsv1alpha1.MongoDBExporter) []corev1.ContainerPort {
	return []corev1.ContainerPort{
		{
			Name:          MetricsPortName,
			ContainerPort: exporterPort(exp),
			Protocol:      corev1.ProtocolTCP,
		},
	}
}
