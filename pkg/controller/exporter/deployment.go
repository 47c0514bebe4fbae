package exporter

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	ctrl "sigs.k8s.io/controller-runtime"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/controller/metadata"
)

const (
	// ComponentName is the component label value for exporter workload resources.
	ComponentName = "exporter"

	// ContainerName is the name of the workload container, matching the
	// container declared in the packaging manifest.
	ContainerName = "mongodb-exporter"

	// DefaultReplicas is the default number of exporter replicas.
	DefaultReplicas int32 = 1

	// DefaultImage is the fallback exporter image when neither the spec nor
	// the packaging manifest provides one.
	DefaultImage = "bitnami/mongodb-exporter:0.30.0"

	// DefaultLogLevel is the exporter's default log verbosity.
	DefaultLogLevel = "info"

	// EnvMongoDBURI is the environment variable the exporter reads the
	// connection string from.
	EnvMongoDBURI = "MONGODB_URI"

	// SourceChecksumAnnotation carries a digest of the resolved connection
	// string on the pod template. A changed URI changes the digest, which
	// rolls the pods.
	SourceChecksumAnnotation = "checksum/mongodb-source"
)

// BuildDeployment creates the Deployment running mongodb_exporter.
// Returns a deterministic Deployment for the given spec and resolved source.
func BuildDeployment(
	exp *charmsv1alpha1.MongoDBExporter,
	source *MongoDBSource,
	image string,
	scheme *runtime.Scheme,
) (*appsv1.Deployment, error) {
	replicas := DefaultReplicas
	if exp.Spec.Replicas != nil {
		replicas = *exp.Spec.Replicas
	}

	if exp.Spec.Image != "" {
		image = exp.Spec.Image
	}
	if image == "" {
		image = DefaultImage
	}

	labels := metadata.BuildStandardLabels(exp.Name, ComponentName)
	podLabels := metadata.MergeLabels(labels, exp.Spec.PodLabels)

	podAnnotations := map[string]string{}
	for k, v := range exp.Spec.PodAnnotations {
		podAnnotations[k] = v
	}
	podAnnotations[SourceChecksumAnnotation] = source.Checksum()

	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      exp.Name,
			Namespace: exp.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: labels,
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      podLabels,
					Annotations: podAnnotations,
				},
				Spec: corev1.PodSpec{
					ServiceAccountName: exp.Spec.ServiceAccountName,
					ImagePullSecrets:   exp.Spec.ImagePullSecrets,
					Containers: []corev1.Container{
						{
							Name:      ContainerName,
							Image:     image,
							Args:      buildContainerArgs(exp),
							Env:       buildContainerEnv(source),
							Ports:     buildContainerPorts(exp),
							Resources: exp.Spec.Resources,
							ReadinessProbe: &corev1.Probe{
								ProbeHandler: corev1.ProbeHandler{
									TCPSocket: &corev1.TCPSocketAction{
										Port: intstr.FromString(MetricsPortName),
									},
								},
								InitialDelaySeconds: 5,
								PeriodSeconds:       5,
							},
						},
					},
					Affinity:     exp.Spec.Affinity,
					Tolerations:  exp.Spec.Tolerations,
					NodeSelector: exp.Spec.NodeSelector,
				},
			},
		},
	}

	if err := ctrl.SetControllerReference(exp, deployment, scheme); err != nil {
		return nil, fmt.Errorf("failed to set controller reference: %w", err)
	}

	return deployment, nil
}

// buildContainerArgs assembles the exporter command line. The URI is passed
// through the environment so Secret-sourced values never appear in the
// Deployment spec.
func buildContainerArgs(exp *charmsv1alpha1.MongoDBExporter) []string {
	level := exp.Spec.LogLevel
	if level == "" {
		level = DefaultLogLevel
	}

	return []string{
		fmt.Sprintf("--mongodb.uri=$(%s)", EnvMongoDBURI),
		fmt.Sprintf("--web.listen-address=:%d", exporterPort(exp)),
		fmt.Sprintf("--log.level=%s", level),
	}
}

// buildContainerEnv injects the connection string: inline for the config
// path, a secretKeyRef for the relation path.
func buildContainerEnv(source *MongoDBSource) []corev1.EnvVar {
	if source.Origin == charmsv1alpha1.MongoDBSourceRelation {
		return []corev1.EnvVar{
			{
				Name: EnvMongoDBURI,
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{
							Name: source.SecretName,
						},
						Key: source.SecretKey,
					},
				},
			},
		}
	}
	return []corev1.EnvVar{
		{
			Name:  EnvMongoDBURI,
			Value: source.URI,
		},
	}
}
