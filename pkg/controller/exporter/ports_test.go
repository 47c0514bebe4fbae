package exporter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
)

func TestBuildContainerPorts(t *testing.T) {
	tests := map[string]struct {
		exp  *charmsv1alpha1.MongoDBExporter
		want []corev1.ContainerPort
	}{
		"default port": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{},
			},
			want: []corev1.ContainerPort{
				{
					Name:          "metrics",
					ContainerPort: 9216,
					Protocol:      corev1.ProtocolTCP,
				},
			},
		},
		"custom port": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					Port: 9999,
				},
			},
			want: []corev1.ContainerPort{
				{
					Name:          "metrics",
					ContainerPort: 9999,
					Protocol:      corev1.ProtocolTCP,
				},
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := buildContainerPorts(tc.exp)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("buildContainerPorts() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
