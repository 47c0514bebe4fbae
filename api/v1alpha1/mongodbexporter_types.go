/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NOTE: json tags are required.  Any new fields you add must have json tags for
// the fields to be serialized.

// Phase describes the coarse lifecycle state of a MongoDBExporter, mirroring
// the unit status taxonomy of the orchestration platform the exporter charm
// originally targeted.
type Phase string

const (
	// PhaseActive means the workload is configured and serving metrics.
	PhaseActive Phase = "Active"

	// PhaseWaiting means the exporter is waiting on something transient,
	// typically the MongoDB connection Secret or workload rollout.
	PhaseWaiting Phase = "Waiting"

	// PhaseBlocked means the exporter cannot make progress without operator
	// intervention, e.g. no MongoDB source or conflicting sources.
	PhaseBlocked Phase = "Blocked"
)

// MongoDBSourceConfig is the value of Status.MongoDBSource when the URI comes
// from the inline spec field, MongoDBSourceRelation when it comes from a
// connection Secret.
const (
	MongoDBSourceConfig   = "config"
	MongoDBSourceRelation = "relation"
)

// SecretKeyRef points at a key inside a Secret in the same namespace.
type SecretKeyRef struct {
	// Name is the Secret name.
	// +kubebuilder:validation:MinLength=1
	Name string `json:"name"`

	// Key is the data key holding the MongoDB connection URI.
	// Defaults to "uris", the key published by the MongoDB operator's
	// client interface.
	// +kubebuilder:default="uris"
	// +optional
	Key string `json:"key,omitempty"`
}

// MongoDBConnection selects the relation path for obtaining the MongoDB URI:
// a Secret written by whichever operator owns the database.
type MongoDBConnection struct {
	// SecretRef references the connection Secret.
	SecretRef SecretKeyRef `json:"secretRef"`
}

// MetricsEndpointSpec configures the Prometheus scrape contract.
type MetricsEndpointSpec struct {
	// Enabled controls whether a ServiceMonitor is created. Creation also
	// requires the Prometheus Operator CRDs to be installed in the cluster.
	// +kubebuilder:default=true
	// +optional
	Enabled *bool `json:"enabled,omitempty"`

	// Interval is the scrape interval, e.g. "30s".
	// +kubebuilder:default="30s"
	// +optional
	Interval string `json:"interval,omitempty"`
}

// DashboardSpec configures the Grafana dashboard contract.
type DashboardSpec struct {
	// Enabled controls whether the dashboard ConfigMap is created for
	// discovery by a Grafana sidecar.
	// +kubebuilder:default=true
	// +optional
	Enabled *bool `json:"enabled,omitempty"`
}

// IngressSpec configures external access to the metrics endpoint.
type IngressSpec struct {
	// ClassName is the IngressClass to use.
	// +optional
	ClassName string `json:"className,omitempty"`

	// Annotations are added to the Ingress object.
	// +optional
	Annotations map[string]string `json:"annotations,omitempty"`

	// TLSSecretName enables TLS termination using the named Secret.
	// +optional
	TLSSecretName string `json:"tlsSecretName,omitempty"`
}

// MongoDBExporterSpec defines the desired state of MongoDBExporter.
type MongoDBExporterSpec struct {
	// Image is the exporter container image. When empty the operator falls
	// back to the upstream source declared in its packaging manifest.
	// +optional
	Image string `json:"image,omitempty"`

	// ImagePullSecrets is an optional list of references to secrets in the same namespace
	// to use for pulling the image.
	// +optional
	ImagePullSecrets []corev1.LocalObjectReference `json:"imagePullSecrets,omitempty"`

	// Replicas is the desired number of exporter pods.
	// +kubebuilder:validation:Minimum=1
	// +kubebuilder:default=1
	// +optional
	Replicas *int32 `json:"replicas,omitempty"`

	// Port is the port the exporter listens on and the Service exposes.
	// +kubebuilder:validation:Minimum=1
	// +kubebuilder:validation:Maximum=65535
	// +kubebuilder:default=9216
	// +optional
	Port int32 `json:"port,omitempty"`

	// LogLevel is the exporter log verbosity.
	// +kubebuilder:validation:Enum=debug;info;warn;error
	// +kubebuilder:default="info"
	// +optional
	LogLevel string `json:"logLevel,omitempty"`

	// MongoDBURI is an inline MongoDB connection URI. Mutually exclusive
	// with MongoDB; setting both blocks the exporter.
	// +optional
	MongoDBURI string `json:"mongodbURI,omitempty"`

	// MongoDB selects a connection Secret as the URI source.
	// +optional
	MongoDB *MongoDBConnection `json:"mongodb,omitempty"`

	// ExternalHostname exposes the metrics endpoint through an Ingress at
	// the given host. When empty no Ingress is created.
	// +optional
	ExternalHostname string `json:"externalHostname,omitempty"`

	// Metrics configures the Prometheus scrape contract.
	// +optional
	Metrics *MetricsEndpointSpec `json:"metrics,omitempty"`

	// Dashboard configures the Grafana dashboard contract.
	// +optional
	Dashboard *DashboardSpec `json:"dashboard,omitempty"`

	// Ingress tunes the Ingress created for ExternalHostname.
	// +optional
	Ingress *IngressSpec `json:"ingress,omitempty"`

	// Resources defines the resource requirements for the exporter container.
	// +optional
	Resources corev1.ResourceRequirements `json:"resources,omitempty"`

	// ServiceAccountName is the name of the ServiceAccount to use for the exporter pods.
	// +optional
	ServiceAccountName string `json:"serviceAccountName,omitempty"`

	// ServiceType determines how the metrics Service is exposed.
	// +kubebuilder:validation:Enum=ClusterIP;NodePort;LoadBalancer
	// +kubebuilder:default="ClusterIP"
	// +optional
	ServiceType corev1.ServiceType `json:"serviceType,omitempty"`

	// ServiceAnnotations are annotations to add to the metrics Service.
	// +optional
	ServiceAnnotations map[string]string `json:"serviceAnnotations,omitempty"`

	// Affinity defines pod affinity and anti-affinity rules.
	// +optional
	Affinity *corev1.Affinity `json:"affinity,omitempty"`

	// Tolerations allows pods to schedule onto nodes with matching taints.
	// +optional
	Tolerations []corev1.Toleration `json:"tolerations,omitempty"`

	// NodeSelector is a selector which must be true for the pod to fit on a node.
	// +optional
	NodeSelector map[string]string `json:"nodeSelector,omitempty"`

	// PodAnnotations are annotations to add to the exporter pods.
	// +optional
	PodAnnotations map[string]string `json:"podAnnotations,omitempty"`

	// PodLabels are additional labels to add to the exporter pods.
	// +optional
	PodLabels map[string]string `json:"podLabels,omitempty"`
}

// MongoDBExporterStatus defines the observed state of MongoDBExporter.
type MongoDBExporterStatus struct {
	// Phase is the coarse lifecycle state: Active, Waiting or Blocked.
	// +optional
	Phase Phase `json:"phase,omitempty"`

	// Ready indicates whether the exporter is healthy and serving metrics.
	Ready bool `json:"ready"`

	// Replicas is the desired number of replicas.
	Replicas int32 `json:"replicas"`

	// ReadyReplicas is the number of ready replicas.
	ReadyReplicas int32 `json:"readyReplicas"`

	// MongoDBSource records where the connection URI currently comes from:
	// "config", "relation", or empty when unresolved.
	// +optional
	MongoDBSource string `json:"mongodbSource,omitempty"`

	// ObservedGeneration reflects the generation of the most recently observed MongoDBExporter spec.
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Conditions represent the latest available observations of the exporter's state.
	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Phase",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Ready",type=boolean,JSONPath=`.status.ready`
// +kubebuilder:printcolumn:name="Source",type=string,JSONPath=`.status.mongodbSource`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`

// MongoDBExporter is the Schema for the mongodbexporters API
type MongoDBExporter struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// spec defines the desired state of MongoDBExporter
	// +required
	Spec MongoDBExporterSpec `json:"spec"`

	// status defines the observed state of MongoDBExporter
	// +optional
	Status MongoDBExporterStatus `json:"status,omitempty,omitzero"`
}

// +kubebuilder:object:root=true

// MongoDBExporterList contains a list of MongoDBExporter
type MongoDBExporterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []MongoDBExporter `json:"items"`
}

func init() {
	SchemeBuilder.Register(&MongoDBExporter{}, &MongoDBExporterList{})
}

// MetricsEnabled reports whether the ServiceMonitor contract is on.
// Unset means enabled, matching the kubebuilder default.
func (e *MongoDBExporter) MetricsEnabled() bool {
	return e.Spec.Metrics == nil || e.Spec.Metrics.Enabled == nil || *e.Spec.Metrics.Enabled
}

// DashboardEnabled reports whether the Grafana dashboard contract is on.
// Unset means enabled, matching the kubebuilder default.
func (e *MongoDBExporter) DashboardEnabled() bool {
	return e.Spec.Dashboard == nil || e.Spec.Dashboard.Enabled == nil || *e.Spec.Dashboard.Enabled
}
