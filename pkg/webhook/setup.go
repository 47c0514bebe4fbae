// Package webhook provides the entry point for the operator's admission
// control layer.
//
// It orchestrates the setup of the controller-runtime webhook server:
//
//  1. Certificate management: delegates to the 'cert' subpackage to ensure
//     TLS certificates are present (self-signed or externally provisioned)
//     before the server starts.
//
//  2. Handler registration: registers the admission handlers from the
//     'handlers' subpackage on their API paths.
//
// Usage:
//
//	if err := webhook.Setup(mgr, opts); err != nil {
//	    setupLog.Error(err, "unable to setup webhook")
//	    os.Exit(1)
//	}
package webhook

import (
	"context"
	"fmt"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/webhook/cert"
	"github.com/osmops/mongodb-exporter-operator/pkg/webhook/handlers"
)

// MutatePath and ValidatePath must match the webhook configuration manifests.
const (
	MutatePath   = "/mutate-charms-osmops-io-v1alpha1-mongodbexporter"
	ValidatePath = "/validate-charms-osmops-io-v1alpha1-mongodbexporter"
)

// CertStrategySelfSigned bootstraps certificates in-process; anything else
// assumes they are provisioned externally (for example by cert-manager).
const CertStrategySelfSigned = "self-signed"

// Options contains the configuration required to set up the webhook server.
type Options struct {
	// Enable indicates whether to start the webhook server.
	Enable bool
	// CertStrategy defines how certificates are managed ("external" or "self-signed").
	CertStrategy string
	// CertDir is the directory where certificates should be read/written.
	CertDir string
	// Namespace is the operator's namespace (required for self-signed strategy).
	Namespace string
	// ServiceName is the operator's service name (required for self-signed strategy).
	ServiceName string
}

// Setup configures the webhook server, handles certificate generation (if
// requested), and registers the admission handlers with the manager.
func Setup(mgr ctrl.Manager, opts Options) error {
	if !opts.Enable {
		return nil
	}

	logger := mgr.GetLogger().WithName("webhook-setup")
	logger.Info("Setting up webhook server", "strategy", opts.CertStrategy)

	// If using self-signed certs, they must exist and the
	// WebhookConfigurations must carry the CA bundle before the manager
	// starts the server.
	if opts.CertStrategy == CertStrategySelfSigned {
		certMgr := cert.NewManager(mgr.GetClient(), cert.Options{
			Namespace:   opts.Namespace,
			ServiceName: opts.ServiceName,
			CertDir:     opts.CertDir,
		})

		// Use a temporary context as the manager's context isn't started yet
		if err := certMgr.EnsureCerts(context.Background()); err != nil {
			return fmt.Errorf("failed to bootstrap self-signed certificates: %w", err)
		}
	}

	server := mgr.GetWebhookServer()
	scheme := mgr.GetScheme()
	exporter := &charmsv1alpha1.MongoDBExporter{}

	server.Register(MutatePath, admission.WithCustomDefaulter(
		scheme, exporter, handlers.NewMongoDBExporterDefaulter(),
	))
	server.Register(ValidatePath, admission.WithCustomValidator(
		scheme, exporter, handlers.NewMongoDBExporterValidator(),
	))

	return nil
}
