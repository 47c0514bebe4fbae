package metadata

import "maps"

// Standard Kubernetes label keys following kubernetes.io conventions.
//
// See: https://kubernetes.io/docs/concepts/overview/working-with-objects/common-labels/
const (
	// LabelAppName is the standard label key for the application name.
	LabelAppName = "app.kubernetes.io/name"

	// LabelAppInstance is the standard label key for the unique instance name.
	LabelAppInstance = "app.kubernetes.io/instance"

	// LabelAppComponent is the standard label key for the component within the
	// application.
	LabelAppComponent = "app.kubernetes.io/component"

	// LabelAppPartOf is the standard label key for the name of a higher level
	// application this one is part of.
	LabelAppPartOf = "app.kubernetes.io/part-of"

	// LabelAppManagedBy is the standard label key for the tool managing the
	// resource.
	LabelAppManagedBy = "app.kubernetes.io/managed-by"
)

const (
	// AppName is the fixed application name for all managed resources.
	AppName = "mongodb-exporter"

	// ManagedBy identifies the operator managing these resources.
	ManagedBy = "mongodb-exporter-operator"
)

// LabelGrafanaDashboard marks a ConfigMap for pickup by a Grafana dashboard
// sidecar. The value is conventionally "1".
const LabelGrafanaDashboard = "grafana_dashboard"

// BuildStandardLabels builds the standard Kubernetes labels applied to every
// resource the operator manages for a MongoDBExporter instance.
//
//   - app.kubernetes.io/name: "mongodb-exporter"
//   - app.kubernetes.io/instance: <resourceName>
//   - app.kubernetes.io/component: <componentName>
//   - app.kubernetes.io/part-of: "mongodb-exporter"
//   - app.kubernetes.io/managed-by: "mongodb-exporter-operator"
func BuildStandardLabels(resourceName, componentName string) map[string]string {
	return map[string]string{
		LabelAppName:      AppName,
		LabelAppInstance:  resourceName,
		LabelAppComponent: componentName,
		LabelAppPartOf:    AppName,
		LabelAppManagedBy: ManagedBy,
	}
}

// MergeLabels merges custom labels with standard labels.
//
// Note that standard labels take precedence over custom labels to prevent users
// from overriding critical operator-managed labels.
func MergeLabels(standardLabels, customLabels map[string]string) map[string]string {
	merged := make(map[string]string)
	maps.Copy(merged, customLabels)
	maps.Copy(merged, standardLabels)
	return merged
}
