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

// Package v1alpha1 defines the API types for the MongoDB Exporter Operator.
//
// This package contains the Go type definitions for the Custom Resources in
// the charms.osmops.io API group. These types are used by kubebuilder to
// generate:
//   - CustomResourceDefinitions (CRDs)
//   - DeepCopy methods
//   - Client code
//
// # Custom Resources
//
// The API defines a single user-facing resource:
//
//   - MongoDBExporter: packages the mongodb_exporter metrics bridge for a
//     MongoDB deployment. Users point it at a MongoDB connection (inline URI
//     or a connection Secret published by a MongoDB operator) and the
//     operator manages the workload and its integration surfaces.
//
// # Managed Children
//
// For each MongoDBExporter the operator reconciles:
//
//	MongoDBExporter
//	├── Deployment (exporter workload)
//	├── Service (metrics port)
//	├── ServiceMonitor (Prometheus scrape contract, optional)
//	├── ConfigMap (Grafana dashboard, sidecar-discovered)
//	└── Ingress (external access, optional)
//
// # Versioning
//
// This is the v1alpha1 version, indicating the API is in early development
// and may change in backward-incompatible ways.
//
// +kubebuilder:object:generate=true
// +groupName=charms.osmops.io
package v1alpha1
