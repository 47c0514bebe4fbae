// Package cert implements self-signed certificate bootstrap for the webhook
// server.
//
// Deployments that do not run cert-manager can still serve admission traffic:
// on startup the Manager generates an ECDSA P-256 CA and a server certificate
// for the operator's Service, persists them in a Secret so restarts reuse the
// same material, writes them to the server's cert directory, and injects the
// CA bundle into every WebhookConfiguration routing to the Service.
//
// Certificates are rotated automatically when they approach expiry or when
// the Service name they were issued for changes.
package cert
