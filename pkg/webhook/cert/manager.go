package cert

// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=admissionregistration.k8s.io,resources=mutatingwebhookconfigurations,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=admissionregistration.k8s.io,resources=validatingwebhookconfigurations,verbs=get;list;watch;update;patch

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// SecretName is the name of the Secret where the generated certs are stored.
	SecretName = "mongodb-exporter-operator-webhook-certs" //nolint:gosec // Not a credential, just a name

	// CertFileName is the name of the certificate file expected by controller-runtime.
	CertFileName = "tls.crt"
	// KeyFileName is the name of the key file expected by controller-runtime.
	KeyFileName = "tls.key"

	// RotationThreshold is the buffer period before expiration when the cert
	// should be rotated.
	RotationThreshold = 30 * 24 * time.Hour
)

// Options configuration for the certificate manager.
type Options struct {
	// Namespace is the namespace where the operator (and Service) is running.
	Namespace string
	// ServiceName is the Service routing admission traffic to the operator.
	ServiceName string
	// CertDir is the directory where the certificates should be written for
	// the server to use.
	CertDir string
}

// Artifacts bundles the CA and server material kept in the cert Secret.
type Artifacts struct {
	CACertPEM     []byte
	CAKeyPEM      []byte
	ServerCertPEM []byte
	ServerKeyPEM  []byte
}

// Manager handles the lifecycle of the webhook certificates.
type Manager struct {
	Client  client.Client
	Options Options
}

// NewManager creates a new certificate manager.
func NewManager(c client.Client, opts Options) *Manager {
	return &Manager{
		Client:  c,
		Options: opts,
	}
}

// EnsureCerts checks for existing certificates, generates them if missing or
// expiring, writes them to disk, and injects the CA bundle into the
// WebhookConfigurations targeting the operator's Service.
func (m *Manager) EnsureCerts(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("webhook-cert-manager")
	logger.Info("ensuring webhook certificates exist and are valid")

	artifacts, err := m.ensureSecret(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure cert secret: %w", err)
	}

	if err := m.writeCertsToDisk(ctx, artifacts); err != nil {
		return fmt.Errorf("failed to write certs to disk: %w", err)
	}

	if err := m.patchWebhookConfigurations(ctx, artifacts.CACertPEM); err != nil {
		return fmt.Errorf("failed to patch webhook configurations: %w", err)
	}

	logger.Info("webhook certificates successfully configured")
	return nil
}

// ensureSecret fetches the cert secret and validates the certificate's
// expiration and SANs. If missing or expiring soon, it generates new
// artifacts and updates/creates the Secret.
func (m *Manager) ensureSecret(ctx context.Context) (*Artifacts, error) {
	logger := log.FromContext(ctx)
	secret := &corev1.Secret{}
	err := m.Client.Get(
		ctx,
		types.NamespacedName{Name: SecretName, Namespace: m.Options.Namespace},
		secret,
	)

	secretFound := false
	if err == nil {
		secretFound = true
		artifacts := &Artifacts{
			CACertPEM:     secret.Data["ca.crt"],
			CAKeyPEM:      secret.Data["ca.key"],
			ServerCertPEM: secret.Data["tls.crt"],
			ServerKeyPEM:  secret.Data["tls.key"],
		}

		if m.isValid(artifacts) {
			logger.Info("existing webhook certificates are valid")
			return artifacts, nil
		}

		logger.Info("existing webhook certificates are missing, expired, or invalid for current service; rotating")
		// Fall through to regeneration
	} else if !apierrors.IsNotFound(err) {
		return nil, err
	}

	commonName := fmt.Sprintf("%s.%s.svc", m.Options.ServiceName, m.Options.Namespace)
	dnsNames := []string{
		m.Options.ServiceName,
		fmt.Sprintf("%s.%s", m.Options.ServiceName, m.Options.Namespace),
		commonName,
		commonName + ".cluster.local",
	}

	logger.Info("generating new self-signed certificates", "commonName", commonName)
	ca, err := GenerateCA()
	if err != nil {
		return nil, err
	}
	server, err := GenerateServerCert(ca, commonName, dnsNames)
	if err != nil {
		return nil, err
	}

	artifacts := &Artifacts{
		CACertPEM:     ca.CertPEM,
		CAKeyPEM:      ca.KeyPEM,
		ServerCertPEM: server.CertPEM,
		ServerKeyPEM:  server.KeyPEM,
	}

	secret.ObjectMeta = metav1.ObjectMeta{
		Name:      SecretName,
		Namespace: m.Options.Namespace,
	}
	secret.Type = corev1.SecretTypeTLS
	secret.Data = map[string][]byte{
		"tls.crt": artifacts.ServerCertPEM,
		"tls.key": artifacts.ServerKeyPEM,
		"ca.crt":  artifacts.CACertPEM,
		"ca.key":  artifacts.CAKeyPEM,
	}

	if secretFound {
		if updateErr := m.Client.Update(ctx, secret); updateErr != nil {
			return nil, fmt.Errorf("failed to update cert secret: %w", updateErr)
		}
	} else {
		if createErr := m.Client.Create(ctx, secret); createErr != nil {
			return nil, fmt.Errorf("failed to create cert secret: %w", createErr)
		}
	}

	return artifacts, nil
}

// isValid checks validity, expiration and that the cert covers the Service.
func (m *Manager) isValid(a *Artifacts) bool {
	if len(a.ServerCertPEM) == 0 || len(a.ServerKeyPEM) == 0 || len(a.CAKeyPEM) == 0 {
		return false
	}

	block, _ := pem.Decode(a.ServerCertPEM)
	if block == nil {
		return false
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return false
	}

	if time.Now().Add(RotationThreshold).After(cert.NotAfter) {
		return false
	}

	// A cert generated for a different Service name must be rotated.
	return slices.Contains(cert.DNSNames, m.Options.ServiceName)
}

func (m *Manager) writeCertsToDisk(ctx context.Context, artifacts *Artifacts) error {
	logger := log.FromContext(ctx)

	if err := os.MkdirAll(m.Options.CertDir, 0o755); err != nil {
		return err
	}

	certPath := filepath.Join(m.Options.CertDir, CertFileName)
	keyPath := filepath.Join(m.Options.CertDir, KeyFileName)

	logger.Info("writing certificates to disk", "dir", m.Options.CertDir)

	if err := os.WriteFile(certPath, artifacts.ServerCertPEM, 0o644); err != nil { //nolint:gosec // Cert is public
		return err
	}

	// Key gets strict permissions
	return os.WriteFile(keyPath, artifacts.ServerKeyPEM, 0o600)
}

func (m *Manager) patchWebhookConfigurations(ctx context.Context, caCert []byte) error {
	logger := log.FromContext(ctx)

	mutatingList := &admissionregistrationv1.MutatingWebhookConfigurationList{}
	if err := m.Client.List(ctx, mutatingList); err != nil {
		return err
	}

	for i := range mutatingList.Items {
		cfg := &mutatingList.Items[i]
		if m.targetsService(mutatingClientConfigs(cfg.Webhooks)) {
			if err := m.patchObject(ctx, cfg, caCert); err != nil {
				return err
			}
			logger.Info("patched CA bundle", "kind", "MutatingWebhookConfiguration", "name", cfg.Name)
		}
	}

	validatingList := &admissionregistrationv1.ValidatingWebhookConfigurationList{}
	if err := m.Client.List(ctx, validatingList); err != nil {
		return err
	}

	for i := range validatingList.Items {
		cfg := &validatingList.Items[i]
		if m.targetsService(validatingClientConfigs(cfg.Webhooks)) {
			if err := m.patchObject(ctx, cfg, caCert); err != nil {
				return err
			}
			logger.Info("patched CA bundle", "kind", "ValidatingWebhookConfiguration", "name", cfg.Name)
		}
	}

	return nil
}

func mutatingClientConfigs(
	webhooks []admissionregistrationv1.MutatingWebhook,
) []admissionregistrationv1.WebhookClientConfig {
	configs := make([]admissionregistrationv1.WebhookClientConfig, 0, len(webhooks))
	for _, w := range webhooks {
		configs = append(configs, w.ClientConfig)
	}
	return configs
}

func validatingClientConfigs(
	webhooks []admissionregistrationv1.ValidatingWebhook,
) []admissionregistrationv1.WebhookClientConfig {
	configs := make([]admissionregistrationv1.WebhookClientConfig, 0, len(webhooks))
	for _, w := range webhooks {
		configs = append(configs, w.ClientConfig)
	}
	return configs
}

// targetsService reports whether any of the client configs route to the
// operator's Service.
func (m *Manager) targetsService(configs []admissionregistrationv1.WebhookClientConfig) bool {
	for _, cc := range configs {
		if cc.Service != nil &&
			cc.Service.Name == m.Options.ServiceName &&
			cc.Service.Namespace == m.Options.Namespace {
			return true
		}
	}
	return false
}

func (m *Manager) patchObject(ctx context.Context, obj client.Object, caBundle []byte) error {
	base := obj.DeepCopyObject().(client.Object)
	updated := false

	switch r := obj.(type) {
	case *admissionregistrationv1.MutatingWebhookConfiguration:
		for i := range r.Webhooks {
			if string(r.Webhooks[i].ClientConfig.CABundle) != string(caBundle) {
				r.Webhooks[i].ClientConfig.CABundle = caBundle
				updated = true
			}
		}
	case *admissionregistrationv1.ValidatingWebhookConfiguration:
		for i := range r.Webhooks {
			if string(r.Webhooks[i].ClientConfig.CABundle) != string(caBundle) {
				r.Webhooks[i].ClientConfig.CABundle = caBundle
				updated = true
			}
		}
	}

	if updated {
		return m.Client.Patch(ctx, obj, client.MergeFrom(base))
	}
	return nil
}
