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

// Package status provides utilities for calculating the Phase of the
// MongoDBExporter Custom Resource from observed workload state.
//
// The Blocked phase is never derived here: it reflects configuration errors
// the reconciler detects before it looks at the workload at all.
package status

import (
	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
)

// ComputePhase determines the phase of an exporter based on workload
// readiness. A workload with no replicas observed yet is still rolling out.
func ComputePhase(ready, total int32) charmsv1alpha1.Phase {
	if total == 0 {
		return charmsv1alpha1.PhaseWaiting
	}
	if ready == total {
		return charmsv1alpha1.PhaseActive
	}
	return charmsv1alpha1.PhaseWaiting
}
