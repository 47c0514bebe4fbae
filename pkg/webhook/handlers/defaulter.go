package handlers

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/webhook"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/monitoring"
)

// +kubebuilder:webhook:path=/mutate-charms-osmops-io-v1alpha1-mongodbexporter,mutating=true,failurePolicy=fail,sideEffects=None,groups=charms.osmops.io,resources=mongodbexporters,verbs=create;update,versions=v1alpha1,name=mmongodbexporter.kb.io,admissionReviewVersions=v1

// Defaults applied when the spec leaves a field empty.
const (
	DefaultReplicas = int32(1)
	DefaultPort     = int32(9216)
	DefaultLogLevel = "info"
	DefaultURIKey   = "uris"
	DefaultInterval = "30s"
)

// MongoDBExporterDefaulter handles the mutation of MongoDBExporter resources.
//
// It materializes the operational defaults into the stored spec so that what
// the user reads back is what the controller acts on. The same values are
// applied in-memory by the builders, keeping the operator robust when the
// webhook is unavailable.
type MongoDBExporterDefaulter struct{}

var _ webhook.CustomDefaulter = &MongoDBExporterDefaulter{}

// NewMongoDBExporterDefaulter creates a new defaulter handler.
func NewMongoDBExporterDefaulter() *MongoDBExporterDefaulter {
	return &MongoDBExporterDefaulter{}
}

// Default implements webhook.CustomDefaulter.
func (d *MongoDBExporterDefaulter) Default(ctx context.Context, obj runtime.Object) (retErr error) {
	start := time.Now()
	defer func() {
		monitoring.RecordWebhookRequest("DEFAULT", "MongoDBExporter", retErr, time.Since(start))
	}()

	exp, ok := obj.(*charmsv1alpha1.MongoDBExporter)
	if !ok {
		return fmt.Errorf("expected MongoDBExporter, got %T", obj)
	}

	if exp.Spec.Replicas == nil {
		exp.Spec.Replicas = ptr.To(DefaultReplicas)
	}
	if exp.Spec.Port == 0 {
		exp.Spec.Port = DefaultPort
	}
	if exp.Spec.LogLevel == "" {
		exp.Spec.LogLevel = DefaultLogLevel
	}

	if exp.Spec.MongoDB != nil && exp.Spec.MongoDB.SecretRef.Key == "" {
		exp.Spec.MongoDB.SecretRef.Key = DefaultURIKey
	}

	if exp.Spec.Metrics != nil {
		if exp.Spec.Metrics.Enabled == nil {
			exp.Spec.Metrics.Enabled = ptr.To(true)
		}
		if exp.Spec.Metrics.Interval == "" {
			exp.Spec.Metrics.Interval = DefaultInterval
		}
	}
	if exp.Spec.Dashboard != nil && exp.Spec.Dashboard.Enabled == nil {
		exp.Spec.Dashboard.Enabled = ptr.To(true)
	}

	return nil
}
