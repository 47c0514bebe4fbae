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

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"os"
	"path/filepath"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	promv1 "github.com/prometheus-operator/prometheus-operator/pkg/apis/monitoring/v1"
	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/discovery"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics/filters"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	ctrlwebhook "sigs.k8s.io/controller-runtime/pkg/webhook"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	exportercontroller "github.com/osmops/mongodb-exporter-operator/pkg/controller/exporter"
	"github.com/osmops/mongodb-exporter-operator/pkg/manifest"
	"github.com/osmops/mongodb-exporter-operator/pkg/monitoring"
	exporterwebhook "github.com/osmops/mongodb-exporter-operator/pkg/webhook"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(charmsv1alpha1.AddToScheme(scheme))
	utilruntime.Must(promv1.AddToScheme(scheme))
	utilruntime.Must(admissionregistrationv1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

func main() {
	var metricsAddr string
	var enableLeaderElection bool
	var probeAddr string
	var secureMetrics bool
	var enableHTTP2 bool
	var tlsOpts []func(*tls.Config)

	// Webhook Flags
	var webhookEnabled bool
	var webhookCertDir string
	var webhookServiceNamespace string
	var webhookServiceName string

	defaultNS := os.Getenv("POD_NAMESPACE")
	if defaultNS == "" {
		defaultNS = "mongodb-exporter-system"
	}

	// General Flags
	flag.StringVar(&metricsAddr, "metrics-bind-address", "0", "The address the metrics endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false, "Enable leader election for controller manager.")
	flag.BoolVar(&secureMetrics, "metrics-secure", true, "If set, the metrics endpoint is served securely via HTTPS.")
	flag.BoolVar(&enableHTTP2, "enable-http2", false, "If set, HTTP/2 will be enabled for the metrics and webhook servers")

	// Webhook Flag Configuration
	flag.BoolVar(&webhookEnabled, "webhook-enable", true, "Enable the admission webhook server")
	flag.StringVar(&webhookCertDir, "webhook-cert-dir", "/var/run/secrets/webhook", "Directory to store/read webhook certificates")
	flag.StringVar(&webhookServiceNamespace, "webhook-service-namespace", defaultNS, "Namespace where the webhook service resides")
	flag.StringVar(&webhookServiceName, "webhook-service-name", "mongodb-exporter-operator-webhook-service", "Name of the Kubernetes Service for the webhook")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	// Tracing stays a noop unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
	shutdownTracing, err := monitoring.InitTracing(context.Background(), "mongodb-exporter-operator", version)
	if err != nil {
		setupLog.Error(err, "unable to initialize tracing")
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			setupLog.Error(err, "failed to shut down tracing")
		}
	}()

	// The packaging manifest carries the workload image and endpoint
	// declarations the controllers rely on.
	meta, err := manifest.Load()
	if err != nil {
		setupLog.Error(err, "invalid packaging manifest")
		os.Exit(1)
	}
	setupLog.Info("loaded packaging manifest",
		"charm", meta.Name,
		"provides", meta.ProvidedInterfaces(),
		"requires", meta.RequiredInterfaces(),
	)

	disableHTTP2 := func(c *tls.Config) {
		setupLog.Info("disabling http/2")
		c.NextProtos = []string{"http/1.1"}
	}
	if !enableHTTP2 {
		tlsOpts = append(tlsOpts, disableHTTP2)
	}

	metricsServerOptions := metricsserver.Options{
		BindAddress:   metricsAddr,
		SecureServing: secureMetrics,
		TLSOpts:       tlsOpts,
	}

	if secureMetrics {
		metricsServerOptions.FilterProvider = filters.WithAuthenticationAndAuthorization
	}

	restConfig := ctrl.GetConfigOrDie()

	// ServiceMonitor management is conditional on the Prometheus Operator
	// CRDs being installed; probe once at startup.
	serviceMonitors := serviceMonitorCRDInstalled(restConfig)
	if !serviceMonitors {
		setupLog.Info("ServiceMonitor CRD not found; metrics endpoint objects will not be managed")
	}

	// Auto-detect the certificate strategy. If the cert files already exist
	// (e.g. mounted by cert-manager), internal generation is skipped.
	certStrategy := "external"
	if webhookEnabled && !certsExist(webhookCertDir) {
		setupLog.Info("webhook certificates not found on disk; enabling self-signed bootstrap")
		certStrategy = exporterwebhook.CertStrategySelfSigned
	}

	mgr, err := ctrl.NewManager(restConfig, ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsServerOptions,
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "mongodb-exporter-operator.charms.osmops.io",
		WebhookServer: ctrlwebhook.NewServer(ctrlwebhook.Options{
			Port:    9443,
			CertDir: webhookCertDir,
			TLSOpts: tlsOpts,
		}),
		Client: client.Options{
			// Disable caching for resources needed during bootstrap/cert rotation
			Cache: &client.CacheOptions{
				DisableFor: []client.Object{
					&corev1.Secret{},
					&admissionregistrationv1.MutatingWebhookConfiguration{},
					&admissionregistrationv1.ValidatingWebhookConfiguration{},
				},
			},
		},
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	if err = (&exportercontroller.ExporterReconciler{
		Client:          mgr.GetClient(),
		Scheme:          mgr.GetScheme(),
		Manifest:        meta,
		ServiceMonitors: serviceMonitors,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "MongoDBExporter")
		os.Exit(1)
	}

	if webhookEnabled {
		if err := exporterwebhook.Setup(mgr, exporterwebhook.Options{
			Enable:       true,
			CertStrategy: certStrategy,
			CertDir:      webhookCertDir,
			Namespace:    webhookServiceNamespace,
			ServiceName:  webhookServiceName,
		}); err != nil {
			setupLog.Error(err, "unable to set up webhook")
			os.Exit(1)
		}
	}

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

// serviceMonitorCRDInstalled probes the API for the Prometheus Operator's
// monitoring group.
func serviceMonitorCRDInstalled(cfg *rest.Config) bool {
	dc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return false
	}
	resources, err := dc.ServerResourcesForGroupVersion(promv1.SchemeGroupVersion.String())
	if err != nil {
		return false
	}
	for _, r := range resources.APIResources {
		if r.Kind == promv1.ServiceMonitorsKind {
			return true
		}
	}
	return false
}

func certsExist(dir string) bool {
	_, errCrt := os.Stat(filepath.Join(dir, "tls.crt"))
	_, errKey := os.Stat(filepath.Join(dir, "tls.key"))
	return !os.IsNotExist(errCrt) && !os.IsNotExist(errKey)
}
