package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/monitoring"
)

// +kubebuilder:webhook:path=/validate-charms-osmops-io-v1alpha1-mongodbexporter,mutating=false,failurePolicy=fail,sideEffects=None,groups=charms.osmops.io,resources=mongodbexporters,verbs=create;update,versions=v1alpha1,name=vmongodbexporter.kb.io,admissionReviewVersions=v1

// validLogLevels are the verbosity values mongodb_exporter accepts.
var validLogLevels = []string{"debug", "info", "warn", "error"}

// MongoDBExporterValidator validates Create and Update events for
// MongoDBExporters. It enforces the semantic rules the OpenAPI schema cannot
// express: the config/relation exclusivity and cross-field consistency.
type MongoDBExporterValidator struct{}

var _ webhook.CustomValidator = &MongoDBExporterValidator{}

// NewMongoDBExporterValidator creates a new validator for MongoDBExporters.
func NewMongoDBExporterValidator() *MongoDBExporterValidator {
	return &MongoDBExporterValidator{}
}

func (v *MongoDBExporterValidator) ValidateCreate(
	ctx context.Context,
	obj runtime.Object,
) (admission.Warnings, error) {
	start := time.Now()
	warnings, err := v.validate(obj)
	monitoring.RecordWebhookRequest("CREATE", "MongoDBExporter", err, time.Since(start))
	return warnings, err
}

func (v *MongoDBExporterValidator) ValidateUpdate(
	ctx context.Context,
	oldObj, newObj runtime.Object,
) (admission.Warnings, error) {
	start := time.Now()
	warnings, err := v.validate(newObj)
	monitoring.RecordWebhookRequest("UPDATE", "MongoDBExporter", err, time.Since(start))
	return warnings, err
}

func (v *MongoDBExporterValidator) ValidateDelete(
	ctx context.Context,
	obj runtime.Object,
) (admission.Warnings, error) {
	return nil, nil
}

func (v *MongoDBExporterValidator) validate(obj runtime.Object) (admission.Warnings, error) {
	exp, ok := obj.(*charmsv1alpha1.MongoDBExporter)
	if !ok {
		return nil, fmt.Errorf("expected MongoDBExporter, got %T", obj)
	}

	var allErrs field.ErrorList
	specPath := field.NewPath("spec")

	// The connection source must be unambiguous. A missing source is
	// allowed here: the controller reports it as Blocked, matching the
	// behavior of deploying an exporter before relating it.
	if exp.Spec.MongoDBURI != "" && exp.Spec.MongoDB != nil {
		allErrs = append(allErrs, field.Invalid(
			specPath.Child("mongodbURI"),
			exp.Spec.MongoDBURI,
			"cannot be combined with spec.mongodb; choose one connection source",
		))
	}

	if uri := exp.Spec.MongoDBURI; uri != "" {
		if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
			allErrs = append(allErrs, field.Invalid(
				specPath.Child("mongodbURI"),
				"(redacted)",
				"must start with mongodb:// or mongodb+srv://",
			))
		}
	}

	if exp.Spec.MongoDB != nil && exp.Spec.MongoDB.SecretRef.Name == "" {
		allErrs = append(allErrs, field.Required(
			specPath.Child("mongodb", "secretRef", "name"),
			"a connection secret name is required",
		))
	}

	if level := exp.Spec.LogLevel; level != "" && !slices.Contains(validLogLevels, level) {
		allErrs = append(allErrs, field.NotSupported(
			specPath.Child("logLevel"),
			level,
			validLogLevels,
		))
	}

	if host := exp.Spec.ExternalHostname; host != "" {
		for _, msg := range validation.IsDNS1123Subdomain(host) {
			allErrs = append(allErrs, field.Invalid(
				specPath.Child("externalHostname"),
				host,
				msg,
			))
		}
	}

	if exp.Spec.Metrics != nil && exp.Spec.Metrics.Interval != "" {
		if _, err := time.ParseDuration(exp.Spec.Metrics.Interval); err != nil {
			allErrs = append(allErrs, field.Invalid(
				specPath.Child("metrics", "interval"),
				exp.Spec.Metrics.Interval,
				"must be a duration such as 30s or 1m",
			))
		}
	}

	if exp.Spec.Ingress != nil && exp.Spec.Ingress.TLSSecretName != "" &&
		exp.Spec.ExternalHostname == "" {
		allErrs = append(allErrs, field.Invalid(
			specPath.Child("ingress", "tlsSecretName"),
			exp.Spec.Ingress.TLSSecretName,
			"requires spec.externalHostname to be set",
		))
	}

	return nil, allErrs.ToAggregate()
}
