package exporter

import (
	"fmt"

	promv1 "github.com/prometheus-operator/prometheus-operator/pkg/apis/monitoring/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/controller/metadata"
)

// MetricsComponentName is the component label value for the scrape contract.
const MetricsComponentName = "metrics-endpoint"

// DefaultScrapeInterval is used when the spec does not set one.
const DefaultScrapeInterval = "30s"

// BuildServiceMonitor creates the ServiceMonitor realizing the
// prometheus_scrape contract: it selects the metrics Service by the standard
// labels and scrapes the named metrics port.
//
// The object belongs to the Prometheus Operator's API group; callers must
// tolerate its CRD being absent from the cluster.
func BuildServiceMonitor(
	exp *charmsv1alpha1.MongoDBExporter,
	scheme *runtime.Scheme,
) (*promv1.ServiceMonitor, error) {
	interval := DefaultScrapeInterval
	if exp.Spec.Metrics != nil && exp.Spec.Metrics.Interval != "" {
		interval = exp.Spec.Metrics.Interval
	}

	sm := &promv1.ServiceMonitor{
		ObjectMeta: metav1.ObjectMeta{
			Name:      exp.Name,
			Namespace: exp.Namespace,
			Labels:    metadata.BuildStandardLabels(exp.Name, MetricsComponentName),
		},
		Spec: promv1.ServiceMonitorSpec{
			Selector: metav1.LabelSelector{
				MatchLabels: metadata.BuildStandardLabels(exp.Name, ComponentName),
			},
			Endpoints: []promv1.Endpoint{
				{
					Port:     MetricsPortName,
					Path:     "/metrics",
					Interval: promv1.Duration(interval),
				},
			},
		},
	}

	if err := ctrl.SetControllerReference(exp, sm, scheme); err != nil {
		return nil, fmt.Errorf("failed to set controller reference: %w", err)
	}

	return sm, nil
}
