package exporter

import (
	"fmt"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"
	ctrl "sigs.k8s.io/controller-runtime"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/controller/metadata"
)

// IngressComponentName is the component label value for the ingress contract.
const IngressComponentName = "ingress"

// BuildIngress creates the Ingress routing ExternalHostname to the metrics
// Service. Callers must not invoke it when ExternalHostname is empty.
func BuildIngress(
	exp *charmsv1alpha1.MongoDBExporter,
	scheme *runtime.Scheme,
) (*networkingv1.Ingress, error) {
	if exp.Spec.ExternalHostname == "" {
		return nil, fmt.Errorf("exporter %q has no external hostname", exp.Name)
	}

	var annotations map[string]string
	var className *string
	var tls []networkingv1.IngressTLS

	if cfg := exp.Spec.Ingress; cfg != nil {
		annotations = cfg.Annotations
		if cfg.ClassName != "" {
			className = ptr.To(cfg.ClassName)
		}
		if cfg.TLSSecretName != "" {
			tls = []networkingv1.IngressTLS{
				{
					Hosts:      []string{exp.Spec.ExternalHostname},
					SecretName: cfg.TLSSecretName,
				},
			}
		}
	}

	pathType := networkingv1.PathTypePrefix

	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:        exp.Name,
			Namespace:   exp.Namespace,
			Labels:      metadata.BuildStandardLabels(exp.Name, IngressComponentName),
			Annotations: annotations,
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: className,
			TLS:              tls,
			Rules: []networkingv1.IngressRule{
				{
					Host: exp.Spec.ExternalHostname,
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     "/",
									PathType: &pathType,
									Backend: networkingv1.IngressBackend{
										Service: &networkingv1.IngressServiceBackend{
											Name: exp.Name,
											Port: networkingv1.ServiceBackendPort{
												Name: MetricsPortName,
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
	}

	if err := ctrl.SetControllerReference(exp, ing, scheme); err != nil {
		return nil, fmt.Errorf("failed to set controller reference: %w", err)
	}

	return ing, nil
}
