package exporter

import (
	"slices"
	"testing"
	"time"

	promv1 "github.com/prometheus-operator/prometheus-operator/pkg/apis/monitoring/v1"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/controller/testutil"
)

func newTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	_ = charmsv1alpha1.AddToScheme(scheme)
	_ = appsv1.AddToScheme(scheme)
	_ = corev1.AddToScheme(scheme)
	_ = networkingv1.AddToScheme(scheme)
	_ = promv1.AddToScheme(scheme)
	return scheme
}

func TestExporterReconciler_Reconcile(t *testing.T) {
	t.Parallel()

	connSecret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "mongodb-creds", Namespace: "default"},
		Data: map[string][]byte{
			"uris": []byte("mongodb://relation:27017/admin"),
		},
	}

	tests := map[string]struct {
		exp             *charmsv1alpha1.MongoDBExporter
		existingObjects []client.Object
		failureConfig   *testutil.FailureConfig
		wantErr         bool
		wantRequeue     time.Duration
		assertFunc      func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter)
	}{
		////----------------------------------------
		///   Success
		//------------------------------------------
		"create all resources for inline URI": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
				},
			},
			existingObjects: []client.Object{},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				key := types.NamespacedName{Name: "test-exporter", Namespace: "default"}

				dp := &appsv1.Deployment{}
				if err := c.Get(t.Context(), key, dp); err != nil {
					t.Errorf("Deployment should exist: %v", err)
				}

				svc := &corev1.Service{}
				if err := c.Get(t.Context(), key, svc); err != nil {
					t.Errorf("Service should exist: %v", err)
				}

				sm := &promv1.ServiceMonitor{}
				if err := c.Get(t.Context(), key, sm); err != nil {
					t.Errorf("ServiceMonitor should exist: %v", err)
				}

				cm := &corev1.ConfigMap{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "test-exporter-dashboard", Namespace: "default"},
					cm); err != nil {
					t.Errorf("dashboard ConfigMap should exist: %v", err)
				}

				// No hostname, no Ingress
				ing := &networkingv1.Ingress{}
				if err := c.Get(t.Context(), key, ing); err == nil {
					t.Error("Ingress should not exist without an external hostname")
				}

				updated := &charmsv1alpha1.MongoDBExporter{}
				if err := c.Get(t.Context(), key, updated); err != nil {
					t.Fatalf("Failed to get MongoDBExporter: %v", err)
				}
				if !slices.Contains(updated.Finalizers, finalizerName) {
					t.Error("Finalizer should be added")
				}
				if updated.Status.MongoDBSource != charmsv1alpha1.MongoDBSourceConfig {
					t.Errorf(
						"Status.MongoDBSource = %s, want %s",
						updated.Status.MongoDBSource,
						charmsv1alpha1.MongoDBSourceConfig,
					)
				}

				env := dp.Spec.Template.Spec.Containers[0].Env
				if len(env) != 1 || env[0].Value != "mongodb://mongo:27017/admin" {
					t.Errorf("container env should carry the inline URI, got %v", env)
				}
			},
		},
		"relation source wires a secretKeyRef": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "relation-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDB: &charmsv1alpha1.MongoDBConnection{
						SecretRef: charmsv1alpha1.SecretKeyRef{Name: "mongodb-creds"},
					},
				},
			},
			existingObjects: []client.Object{connSecret},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				dp := &appsv1.Deployment{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "relation-exporter", Namespace: "default"},
					dp); err != nil {
					t.Fatalf("Failed to get Deployment: %v", err)
				}

				env := dp.Spec.Template.Spec.Containers[0].Env
				if len(env) != 1 || env[0].ValueFrom == nil ||
					env[0].ValueFrom.SecretKeyRef == nil ||
					env[0].ValueFrom.SecretKeyRef.Name != "mongodb-creds" {
					t.Errorf("container env should reference the connection secret, got %v", env)
				}
				if env[0].Value != "" {
					t.Error("raw URI must not appear in the Deployment spec")
				}

				updated := &charmsv1alpha1.MongoDBExporter{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "relation-exporter", Namespace: "default"},
					updated); err != nil {
					t.Fatalf("Failed to get MongoDBExporter: %v", err)
				}
				if updated.Status.MongoDBSource != charmsv1alpha1.MongoDBSourceRelation {
					t.Errorf(
						"Status.MongoDBSource = %s, want %s",
						updated.Status.MongoDBSource,
						charmsv1alpha1.MongoDBSourceRelation,
					)
				}
			},
		},
		"update existing Deployment": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:       "existing-exporter",
					Namespace:  "default",
					Finalizers: []string{finalizerName},
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
					Replicas:   int32Ptr(2),
					Image:      "bitnami/mongodb-exporter:0.40.0",
				},
			},
			existingObjects: []client.Object{
				&appsv1.Deployment{
					ObjectMeta: metav1.ObjectMeta{
						Name:      "existing-exporter",
						Namespace: "default",
					},
					Spec: appsv1.DeploymentSpec{
						Replicas: int32Ptr(1), // will be updated to 2
					},
				},
			},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				dp := &appsv1.Deployment{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "existing-exporter", Namespace: "default"},
					dp); err != nil {
					t.Fatalf("Failed to get Deployment: %v", err)
				}
				if *dp.Spec.Replicas != 2 {
					t.Errorf("Deployment replicas = %d, want 2", *dp.Spec.Replicas)
				}
				if dp.Spec.Template.Spec.Containers[0].Image != "bitnami/mongodb-exporter:0.40.0" {
					t.Errorf(
						"Deployment image = %s, want bitnami/mongodb-exporter:0.40.0",
						dp.Spec.Template.Spec.Containers[0].Image,
					)
				}
			},
		},
		"external hostname creates an Ingress": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "ingress-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI:       "mongodb://mongo:27017/admin",
					ExternalHostname: "metrics.example.com",
				},
			},
			existingObjects: []client.Object{},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				ing := &networkingv1.Ingress{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "ingress-exporter", Namespace: "default"},
					ing); err != nil {
					t.Fatalf("Failed to get Ingress: %v", err)
				}
				if ing.Spec.Rules[0].Host != "metrics.example.com" {
					t.Errorf("Ingress host = %s, want metrics.example.com", ing.Spec.Rules[0].Host)
				}
			},
		},
		"removing the hostname removes the Ingress": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:       "ingress-exporter",
					Namespace:  "default",
					Finalizers: []string{finalizerName},
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
				},
			},
			existingObjects: []client.Object{
				&networkingv1.Ingress{
					ObjectMeta: metav1.ObjectMeta{
						Name:      "ingress-exporter",
						Namespace: "default",
					},
				},
			},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				ing := &networkingv1.Ingress{}
				err := c.Get(t.Context(),
					types.NamespacedName{Name: "ingress-exporter", Namespace: "default"},
					ing)
				if err == nil {
					t.Error("Ingress should be deleted when the hostname is removed")
				}
			},
		},
		"disabled dashboard removes the ConfigMap": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:       "no-dash-exporter",
					Namespace:  "default",
					Finalizers: []string{finalizerName},
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
					Dashboard:  &charmsv1alpha1.DashboardSpec{Enabled: boolPtr(false)},
				},
			},
			existingObjects: []client.Object{
				&corev1.ConfigMap{
					ObjectMeta: metav1.ObjectMeta{
						Name:      "no-dash-exporter-dashboard",
						Namespace: "default",
					},
				},
			},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				cm := &corev1.ConfigMap{}
				err := c.Get(t.Context(),
					types.NamespacedName{Name: "no-dash-exporter-dashboard", Namespace: "default"},
					cm)
				if err == nil {
					t.Error("dashboard ConfigMap should be deleted when disabled")
				}
			},
		},
		"disabled metrics removes the ServiceMonitor": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:       "no-metrics-exporter",
					Namespace:  "default",
					Finalizers: []string{finalizerName},
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
					Metrics:    &charmsv1alpha1.MetricsEndpointSpec{Enabled: boolPtr(false)},
				},
			},
			existingObjects: []client.Object{
				&promv1.ServiceMonitor{
					ObjectMeta: metav1.ObjectMeta{
						Name:      "no-metrics-exporter",
						Namespace: "default",
					},
				},
			},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				sm := &promv1.ServiceMonitor{}
				err := c.Get(t.Context(),
					types.NamespacedName{Name: "no-metrics-exporter", Namespace: "default"},
					sm)
				if err == nil {
					t.Error("ServiceMonitor should be deleted when metrics are disabled")
				}
			},
		},
		"all replicas ready status": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:       "ready-exporter",
					Namespace:  "default",
					Finalizers: []string{finalizerName},
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
					Replicas:   int32Ptr(2),
				},
			},
			existingObjects: []client.Object{
				&appsv1.Deployment{
					ObjectMeta: metav1.ObjectMeta{
						Name:      "ready-exporter",
						Namespace: "default",
					},
					Spec: appsv1.DeploymentSpec{
						Replicas: int32Ptr(2),
					},
					Status: appsv1.DeploymentStatus{
						Replicas:      2,
						ReadyReplicas: 2,
					},
				},
			},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				updated := &charmsv1alpha1.MongoDBExporter{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "ready-exporter", Namespace: "default"},
					updated); err != nil {
					t.Fatalf("Failed to get MongoDBExporter: %v", err)
				}

				if !updated.Status.Ready {
					t.Error("Status.Ready should be true")
				}
				if updated.Status.Phase != charmsv1alpha1.PhaseActive {
					t.Errorf("Status.Phase = %s, want %s", updated.Status.Phase, charmsv1alpha1.PhaseActive)
				}
				if updated.Status.ReadyReplicas != 2 {
					t.Errorf("Status.ReadyReplicas = %d, want 2", updated.Status.ReadyReplicas)
				}

				if len(updated.Status.Conditions) == 0 {
					t.Fatal("Status.Conditions should not be empty")
				}
				ready := updated.Status.Conditions[0]
				if ready.Type != "Ready" || ready.Status != metav1.ConditionTrue {
					t.Errorf("Ready condition = %s/%s, want Ready/True", ready.Type, ready.Status)
				}
			},
		},
		"deletion with finalizer": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:              "deleted-exporter",
					Namespace:         "default",
					DeletionTimestamp: &metav1.Time{Time: metav1.Now().Time},
					Finalizers:        []string{finalizerName},
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{},
			},
			existingObjects: []client.Object{
				&charmsv1alpha1.MongoDBExporter{
					ObjectMeta: metav1.ObjectMeta{
						Name:              "deleted-exporter",
						Namespace:         "default",
						DeletionTimestamp: &metav1.Time{Time: metav1.Now().Time},
						Finalizers:        []string{finalizerName},
					},
					Spec: charmsv1alpha1.MongoDBExporterSpec{},
				},
			},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				updated := &charmsv1alpha1.MongoDBExporter{}
				err := c.Get(t.Context(),
					types.NamespacedName{Name: "deleted-exporter", Namespace: "default"},
					updated)
				if err == nil {
					t.Errorf(
						"MongoDBExporter should be deleted but still exists (finalizers: %v)",
						updated.Finalizers,
					)
				}
			},
		},
		////----------------------------------------
		///   Blocked / Waiting
		//------------------------------------------
		"no source is blocked without requeue": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "blocked-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{},
			},
			existingObjects: []client.Object{},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				updated := &charmsv1alpha1.MongoDBExporter{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "blocked-exporter", Namespace: "default"},
					updated); err != nil {
					t.Fatalf("Failed to get MongoDBExporter: %v", err)
				}
				if updated.Status.Phase != charmsv1alpha1.PhaseBlocked {
					t.Errorf("Status.Phase = %s, want %s", updated.Status.Phase, charmsv1alpha1.PhaseBlocked)
				}

				// The workload must not be created from an unresolved spec.
				dp := &appsv1.Deployment{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "blocked-exporter", Namespace: "default"},
					dp); err == nil {
					t.Error("Deployment should not be created while blocked")
				}
			},
		},
		"conflicting sources is blocked": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "conflicted-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
					MongoDB: &charmsv1alpha1.MongoDBConnection{
						SecretRef: charmsv1alpha1.SecretKeyRef{Name: "mongodb-creds"},
					},
				},
			},
			existingObjects: []client.Object{connSecret},
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				updated := &charmsv1alpha1.MongoDBExporter{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "conflicted-exporter", Namespace: "default"},
					updated); err != nil {
					t.Fatalf("Failed to get MongoDBExporter: %v", err)
				}
				if updated.Status.Phase != charmsv1alpha1.PhaseBlocked {
					t.Errorf("Status.Phase = %s, want %s", updated.Status.Phase, charmsv1alpha1.PhaseBlocked)
				}

				var conn *metav1.Condition
				for i := range updated.Status.Conditions {
					if updated.Status.Conditions[i].Type == "MongoDBConnection" {
						conn = &updated.Status.Conditions[i]
					}
				}
				if conn == nil {
					t.Fatal("MongoDBConnection condition should be set")
				}
				if conn.Reason != "ConflictingSources" {
					t.Errorf("condition reason = %s, want ConflictingSources", conn.Reason)
				}
			},
		},
		"missing secret waits and requeues": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "waiting-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDB: &charmsv1alpha1.MongoDBConnection{
						SecretRef: charmsv1alpha1.SecretKeyRef{Name: "absent-creds"},
					},
				},
			},
			existingObjects: []client.Object{},
			wantRequeue:     relationRequeueInterval,
			assertFunc: func(t *testing.T, c client.Client, exp *charmsv1alpha1.MongoDBExporter) {
				updated := &charmsv1alpha1.MongoDBExporter{}
				if err := c.Get(t.Context(),
					types.NamespacedName{Name: "waiting-exporter", Namespace: "default"},
					updated); err != nil {
					t.Fatalf("Failed to get MongoDBExporter: %v", err)
				}
				if updated.Status.Phase != charmsv1alpha1.PhaseWaiting {
					t.Errorf("Status.Phase = %s, want %s", updated.Status.Phase, charmsv1alpha1.PhaseWaiting)
				}
			},
		},
		////----------------------------------------
		///   Error
		//------------------------------------------
		"error on status update": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
				},
			},
			existingObjects: []client.Object{},
			failureConfig: &testutil.FailureConfig{
				OnStatusUpdate: testutil.FailOnObjectName("test-exporter", testutil.ErrInjected),
			},
			wantErr: true,
		},
		"error on Deployment create": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
				},
			},
			existingObjects: []client.Object{},
			failureConfig: &testutil.FailureConfig{
				OnCreate: func(obj client.Object) error {
					if _, ok := obj.(*appsv1.Deployment); ok {
						return testutil.ErrPermissionError
					}
					return nil
				},
			},
			wantErr: true,
		},
		"error on Service create": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
				},
			},
			existingObjects: []client.Object{},
			failureConfig: &testutil.FailureConfig{
				OnCreate: func(obj client.Object) error {
					if _, ok := obj.(*corev1.Service); ok {
						return testutil.ErrPermissionError
					}
					return nil
				},
			},
			wantErr: true,
		},
		"error on connection secret Get (network error)": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:       "relation-exporter",
					Namespace:  "default",
					Finalizers: []string{finalizerName},
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDB: &charmsv1alpha1.MongoDBConnection{
						SecretRef: charmsv1alpha1.SecretKeyRef{Name: "mongodb-creds"},
					},
				},
			},
			existingObjects: []client.Object{connSecret},
			failureConfig: &testutil.FailureConfig{
				OnGet: testutil.FailOnKeyName("mongodb-creds", testutil.ErrNetworkTimeout),
			},
			wantErr: true,
		},
		"error on finalizer Update": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{
					MongoDBURI: "mongodb://mongo:27017/admin",
				},
			},
			existingObjects: []client.Object{},
			failureConfig: &testutil.FailureConfig{
				OnUpdate: testutil.FailOnObjectName("test-exporter", testutil.ErrInjected),
			},
			wantErr: true,
		},
		"error on Get MongoDBExporter (network error)": {
			exp: &charmsv1alpha1.MongoDBExporter{
				ObjectMeta: metav1.ObjectMeta{
					Name:      "test-exporter",
					Namespace: "default",
				},
				Spec: charmsv1alpha1.MongoDBExporterSpec{},
			},
			existingObjects: []client.Object{},
			failureConfig: &testutil.FailureConfig{
				OnGet: testutil.FailOnKeyName("test-exporter", testutil.ErrNetworkTimeout),
			},
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			scheme := newTestScheme(t)
			baseClient := fake.NewClientBuilder().
				WithScheme(scheme).
				WithObjects(tc.existingObjects...).
				WithStatusSubresource(&charmsv1alpha1.MongoDBExporter{}).
				Build()

			fakeClient := client.Client(baseClient)
			if tc.failureConfig != nil {
				fakeClient = testutil.NewFakeClientWithFailures(baseClient, tc.failureConfig)
			}

			reconciler := &ExporterReconciler{
				Client:          fakeClient,
				Scheme:          scheme,
				ServiceMonitors: true,
			}

			// Create the exporter if it is not among the existing objects
			inExisting := false
			for _, obj := range tc.existingObjects {
				if e, ok := obj.(*charmsv1alpha1.MongoDBExporter); ok && e.Name == tc.exp.Name {
					inExisting = true
					break
				}
			}
			if !inExisting {
				if err := fakeClient.Create(t.Context(), tc.exp); err != nil {
					t.Fatalf("Failed to create MongoDBExporter: %v", err)
				}
			}

			req := ctrl.Request{
				NamespacedName: types.NamespacedName{
					Name:      tc.exp.Name,
					Namespace: tc.exp.Namespace,
				},
			}

			result, err := reconciler.Reconcile(t.Context(), req)
			if (err != nil) != tc.wantErr {
				t.Errorf("Reconcile() error = %v, wantErr %v", err, tc.wantErr)
				return
			}
			if tc.wantErr {
				return
			}

			if result.RequeueAfter != tc.wantRequeue {
				t.Errorf(
					"Reconcile() RequeueAfter = %v, want %v",
					result.RequeueAfter,
					tc.wantRequeue,
				)
			}

			if tc.assertFunc != nil {
				tc.assertFunc(t, fakeClient, tc.exp)
			}
		})
	}
}

func TestExporterReconciler_ReconcileNotFound(t *testing.T) {
	scheme := newTestScheme(t)
	fakeClient := fake.NewClientBuilder().
		WithScheme(scheme).
		Build()

	reconciler := &ExporterReconciler{
		Client: fakeClient,
		Scheme: scheme,
	}

	req := ctrl.Request{
		NamespacedName: types.NamespacedName{
			Name:      "nonexistent-exporter",
			Namespace: "default",
		},
	}

	result, err := reconciler.Reconcile(t.Context(), req)
	if err != nil {
		t.Errorf("Reconcile() should not error on NotFound, got: %v", err)
	}
	if result.RequeueAfter > 0 {
		t.Errorf("Reconcile() should not requeue on NotFound")
	}
}

func TestExportersForSecret(t *testing.T) {
	t.Parallel()

	scheme := newTestScheme(t)

	consumer := &charmsv1alpha1.MongoDBExporter{
		ObjectMeta: metav1.ObjectMeta{Name: "consumer", Namespace: "default"},
		Spec: charmsv1alpha1.MongoDBExporterSpec{
			MongoDB: &charmsv1alpha1.MongoDBConnection{
				SecretRef: charmsv1alpha1.SecretKeyRef{Name: "mongodb-creds"},
			},
		},
	}
	inline := &charmsv1alpha1.MongoDBExporter{
		ObjectMeta: metav1.ObjectMeta{Name: "inline", Namespace: "default"},
		Spec: charmsv1alpha1.MongoDBExporterSpec{
			MongoDBURI: "mongodb://mongo:27017/admin",
		},
	}
	otherNamespace := &charmsv1alpha1.MongoDBExporter{
		ObjectMeta: metav1.ObjectMeta{Name: "elsewhere", Namespace: "other"},
		Spec: charmsv1alpha1.MongoDBExporterSpec{
			MongoDB: &charmsv1alpha1.MongoDBConnection{
				SecretRef: charmsv1alpha1.SecretKeyRef{Name: "mongodb-creds"},
			},
		},
	}

	fakeClient := fake.NewClientBuilder().
		WithScheme(scheme).
		WithObjects(consumer, inline, otherNamespace).
		Build()

	reconciler := &ExporterReconciler{Client: fakeClient, Scheme: scheme}

	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "mongodb-creds", Namespace: "default"},
	}

	requests := reconciler.exportersForSecret(t.Context(), secret)
	if len(requests) != 1 {
		t.Fatalf("exportersForSecret() returned %d requests, want 1", len(requests))
	}
	want := types.NamespacedName{Name: "consumer", Namespace: "default"}
	if requests[0].NamespacedName != want {
		t.Errorf("exportersForSecret() = %v, want %v", requests[0].NamespacedName, want)
	}

	unrelated := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "unrelated", Namespace: "default"},
	}
	if got := reconciler.exportersForSecret(t.Context(), unrelated); len(got) != 0 {
		t.Errorf("exportersForSecret() for unrelated secret = %v, want none", got)
	}
}
