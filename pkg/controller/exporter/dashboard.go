package exporter

import (
	_ "embed"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	ctrl "sigs.k8s.io/controller-runtime"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/controller/metadata"
)

// DashboardComponentName is the component label value for the dashboard contract.
const DashboardComponentName = "grafana-dashboard"

// DashboardFileName is the data key the sidecar imports the dashboard under.
const DashboardFileName = "mongodb-overview.json"

// MongoDBOverviewDashboard is the Grafana dashboard shipped with the
// exporter, covering availability, connections, op rates and memory.
//
//go:embed dashboards/mongodb-overview.json
var MongoDBOverviewDashboard string

// BuildDashboardConfigMap creates the ConfigMap realizing the
// grafana_dashboard contract. A Grafana sidecar discovers it through the
// grafana_dashboard label and imports the embedded JSON.
func BuildDashboardConfigMap(
	exp *charmsv1alpha1.MongoDBExporter,
	scheme *runtime.Scheme,
) (*corev1.ConfigMap, error) {
	labels := metadata.BuildStandardLabels(exp.Name, DashboardComponentName)
	labels[metadata.LabelGrafanaDashboard] = "1"

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      DashboardConfigMapName(exp),
			Namespace: exp.Namespace,
			Labels:    labels,
		},
		Data: map[string]string{
			DashboardFileName: MongoDBOverviewDashboard,
		},
	}

	if err := ctrl.SetControllerReference(exp, cm, scheme); err != nil {
		return nil, fmt.Errorf("failed to set controller reference: %w", err)
	}

	return cm, nil
}

// DashboardConfigMapName returns the name of the dashboard ConfigMap for the
// given exporter.
func DashboardConfigMapName(exp *charmsv1alpha1.MongoDBExporter) string {
	return fmt.Sprintf("%s-dashboard", exp.Name)
}
