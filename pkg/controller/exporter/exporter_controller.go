package exporter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	promv1 "github.com/prometheus-operator/prometheus-operator/pkg/apis/monitoring/v1"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	charmsv1alpha1 "github.com/osmops/mongodb-exporter-operator/api/v1alpha1"
	"github.com/osmops/mongodb-exporter-operator/pkg/manifest"
	"github.com/osmops/mongodb-exporter-operator/pkg/monitoring"
	"github.com/osmops/mongodb-exporter-operator/pkg/util/status"
)

const (
	finalizerName = "mongodbexporter.charms.osmops.io/finalizer"

	// relationRequeueInterval is how long to wait before re-checking a
	// connection Secret that has not arrived yet.
	relationRequeueInterval = 30 * time.Second
)

// ExporterReconciler reconciles a MongoDBExporter object.
type ExporterReconciler struct {
	client.Client
	Scheme *runtime.Scheme

	// Manifest supplies packaging defaults, notably the workload image
	// declared as the oci-image resource's upstream source.
	Manifest *manifest.Manifest

	// ServiceMonitors gates management of Prometheus Operator objects.
	// Leave false when the ServiceMonitor CRD is not installed.
	ServiceMonitors bool
}

// +kubebuilder:rbac:groups=charms.osmops.io,resources=mongodbexporters,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=charms.osmops.io,resources=mongodbexporters/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=charms.osmops.io,resources=mongodbexporters/finalizers,verbs=update
// +kubebuilder:rbac:groups=apps,resources=deployments,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=services;configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups="",resources=secrets,verbs=get;list;watch
// +kubebuilder:rbac:groups=networking.k8s.io,resources=ingresses,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=monitoring.coreos.com,resources=servicemonitors,verbs=get;list;watch;create;update;patch;delete

// Reconcile handles MongoDBExporter resource reconciliation.
func (r *ExporterReconciler) Reconcile(
	ctx context.Context,
	req ctrl.Request,
) (ctrl.Result, error) {
	ctx, span := monitoring.StartReconcileSpan(
		ctx, "MongoDBExporter.Reconcile", req.Name, req.Namespace, "MongoDBExporter")
	defer span.End()

	result, err := r.reconcile(ctx, req)
	monitoring.RecordSpanError(span, err)
	return result, err
}

func (r *ExporterReconciler) reconcile(
	ctx context.Context,
	req ctrl.Request,
) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	// Fetch the MongoDBExporter instance
	exp := &charmsv1alpha1.MongoDBExporter{}
	if err := r.Get(ctx, req.NamespacedName, exp); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info("MongoDBExporter resource not found, ignoring")
			return ctrl.Result{}, nil
		}
		logger.Error(err, "Failed to get MongoDBExporter")
		return ctrl.Result{}, err
	}

	// Handle deletion
	if !exp.DeletionTimestamp.IsZero() {
		return r.handleDeletion(ctx, exp)
	}

	// Add finalizer if not present
	if !slices.Contains(exp.Finalizers, finalizerName) {
		exp.Finalizers = append(exp.Finalizers, finalizerName)
		if err := r.Update(ctx, exp); err != nil {
			logger.Error(err, "Failed to add finalizer")
			return ctrl.Result{}, err
		}
	}

	// Resolve the connection source. This is the relation-changed half of
	// the loop: the outcome decides both the workload configuration and
	// the unit's phase.
	source, err := ResolveMongoDBSource(ctx, r.Client, exp)
	if err != nil {
		monitoring.RecordSourceResolution("none", err)
		switch {
		case IsBlocked(err):
			logger.Info("MongoDBExporter is blocked", "reason", err.Error())
			return ctrl.Result{}, r.markUnresolved(ctx, exp, charmsv1alpha1.PhaseBlocked, err)
		case IsPending(err):
			logger.Info("MongoDBExporter is waiting for relation data", "reason", err.Error())
			if statusErr := r.markUnresolved(ctx, exp, charmsv1alpha1.PhaseWaiting, err); statusErr != nil {
				return ctrl.Result{}, statusErr
			}
			return ctrl.Result{RequeueAfter: relationRequeueInterval}, nil
		default:
			logger.Error(err, "Failed to resolve MongoDB source")
			return ctrl.Result{}, err
		}
	}
	monitoring.RecordSourceResolution(source.Origin, nil)

	// Reconcile Deployment
	if err := r.reconcileDeployment(ctx, exp, source); err != nil {
		logger.Error(err, "Failed to reconcile Deployment")
		return ctrl.Result{}, err
	}

	// Reconcile Service
	if err := r.reconcileService(ctx, exp); err != nil {
		logger.Error(err, "Failed to reconcile Service")
		return ctrl.Result{}, err
	}

	// Reconcile ServiceMonitor
	if err := r.reconcileServiceMonitor(ctx, exp); err != nil {
		logger.Error(err, "Failed to reconcile ServiceMonitor")
		return ctrl.Result{}, err
	}

	// Reconcile Grafana dashboard ConfigMap
	if err := r.reconcileDashboard(ctx, exp); err != nil {
		logger.Error(err, "Failed to reconcile dashboard ConfigMap")
		return ctrl.Result{}, err
	}

	// Reconcile Ingress
	if err := r.reconcileIngress(ctx, exp); err != nil {
		logger.Error(err, "Failed to reconcile Ingress")
		return ctrl.Result{}, err
	}

	// Update status
	if err := r.updateStatus(ctx, exp, source); err != nil {
		logger.Error(err, "Failed to update status")
		return ctrl.Result{}, err
	}

	return ctrl.Result{}, nil
}

// handleDeletion handles cleanup when the MongoDBExporter is being deleted.
func (r *ExporterReconciler) handleDeletion(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
) (ctrl.Result, error) {
	logger := log.FromContext(ctx)

	if slices.Contains(exp.Finalizers, finalizerName) {
		// Owner references handle child resource deletion; nothing else
		// to clean up.
		exp.Finalizers = slices.DeleteFunc(exp.Finalizers, func(s string) bool {
			return s == finalizerName
		})
		if err := r.Update(ctx, exp); err != nil {
			logger.Error(err, "Failed to remove finalizer")
			return ctrl.Result{}, err
		}
	}

	monitoring.DeleteExporterMetrics(exp.Name, exp.Namespace)

	return ctrl.Result{}, nil
}

// defaultImage resolves the workload image from the packaging manifest,
// falling back to the compiled-in default.
func (r *ExporterReconciler) defaultImage() string {
	if r.Manifest != nil {
		if image, err := r.Manifest.ContainerImage(ContainerName); err == nil && image != "" {
			return image
		}
	}
	return DefaultImage
}

// reconcileDeployment creates or updates the exporter Deployment.
func (r *ExporterReconciler) reconcileDeployment(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
	source *MongoDBSource,
) error {
	desired, err := BuildDeployment(exp, source, r.defaultImage(), r.Scheme)
	if err != nil {
		return fmt.Errorf("failed to build Deployment: %w", err)
	}

	existing := &appsv1.Deployment{}
	err = r.Get(ctx, client.ObjectKey{Namespace: exp.Namespace, Name: exp.Name}, existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			if err := r.Create(ctx, desired); err != nil {
				return fmt.Errorf("failed to create Deployment: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to get Deployment: %w", err)
	}

	existing.Spec = desired.Spec
	existing.Labels = desired.Labels
	if err := r.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update Deployment: %w", err)
	}

	return nil
}

// reconcileService creates or updates the metrics Service.
func (r *ExporterReconciler) reconcileService(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
) error {
	desired, err := BuildService(exp, r.Scheme)
	if err != nil {
		return fmt.Errorf("failed to build Service: %w", err)
	}

	existing := &corev1.Service{}
	err = r.Get(ctx, client.ObjectKey{Namespace: exp.Namespace, Name: exp.Name}, existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			if err := r.Create(ctx, desired); err != nil {
				return fmt.Errorf("failed to create Service: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to get Service: %w", err)
	}

	existing.Spec.Type = desired.Spec.Type
	existing.Spec.Ports = desired.Spec.Ports
	existing.Spec.Selector = desired.Spec.Selector
	existing.Labels = desired.Labels
	existing.Annotations = desired.Annotations
	if err := r.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update Service: %w", err)
	}

	return nil
}

// reconcileServiceMonitor creates, updates or removes the ServiceMonitor
// realizing the prometheus_scrape contract.
func (r *ExporterReconciler) reconcileServiceMonitor(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
) error {
	if !r.ServiceMonitors {
		// The CRD is not installed; the contract is simply not offered.
		return nil
	}

	if !exp.MetricsEnabled() {
		existing := &promv1.ServiceMonitor{
			ObjectMeta: metav1.ObjectMeta{Namespace: exp.Namespace, Name: exp.Name},
		}
		if err := client.IgnoreNotFound(r.Delete(ctx, existing)); err != nil {
			return fmt.Errorf("failed to delete ServiceMonitor: %w", err)
		}
		return nil
	}

	desired, err := BuildServiceMonitor(exp, r.Scheme)
	if err != nil {
		return fmt.Errorf("failed to build ServiceMonitor: %w", err)
	}

	existing := &promv1.ServiceMonitor{}
	err = r.Get(ctx, client.ObjectKey{Namespace: exp.Namespace, Name: exp.Name}, existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			if err := r.Create(ctx, desired); err != nil {
				return fmt.Errorf("failed to create ServiceMonitor: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to get ServiceMonitor: %w", err)
	}

	existing.Spec = desired.Spec
	existing.Labels = desired.Labels
	if err := r.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update ServiceMonitor: %w", err)
	}

	return nil
}

// reconcileDashboard creates, updates or removes the Grafana dashboard
// ConfigMap realizing the grafana_dashboard contract.
func (r *ExporterReconciler) reconcileDashboard(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
) error {
	name := DashboardConfigMapName(exp)

	if !exp.DashboardEnabled() {
		existing := &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Namespace: exp.Namespace, Name: name},
		}
		if err := client.IgnoreNotFound(r.Delete(ctx, existing)); err != nil {
			return fmt.Errorf("failed to delete dashboard ConfigMap: %w", err)
		}
		return nil
	}

	desired, err := BuildDashboardConfigMap(exp, r.Scheme)
	if err != nil {
		return fmt.Errorf("failed to build dashboard ConfigMap: %w", err)
	}

	existing := &corev1.ConfigMap{}
	err = r.Get(ctx, client.ObjectKey{Namespace: exp.Namespace, Name: name}, existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			if err := r.Create(ctx, desired); err != nil {
				return fmt.Errorf("failed to create dashboard ConfigMap: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to get dashboard ConfigMap: %w", err)
	}

	existing.Data = desired.Data
	existing.Labels = desired.Labels
	if err := r.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update dashboard ConfigMap: %w", err)
	}

	return nil
}

// reconcileIngress creates, updates or removes the Ingress for the external
// hostname.
func (r *ExporterReconciler) reconcileIngress(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
) error {
	if exp.Spec.ExternalHostname == "" {
		existing := &networkingv1.Ingress{
			ObjectMeta: metav1.ObjectMeta{Namespace: exp.Namespace, Name: exp.Name},
		}
		if err := client.IgnoreNotFound(r.Delete(ctx, existing)); err != nil {
			return fmt.Errorf("failed to delete Ingress: %w", err)
		}
		return nil
	}

	desired, err := BuildIngress(exp, r.Scheme)
	if err != nil {
		return fmt.Errorf("failed to build Ingress: %w", err)
	}

	existing := &networkingv1.Ingress{}
	err = r.Get(ctx, client.ObjectKey{Namespace: exp.Namespace, Name: exp.Name}, existing)
	if err != nil {
		if apierrors.IsNotFound(err) {
			if err := r.Create(ctx, desired); err != nil {
				return fmt.Errorf("failed to create Ingress: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to get Ingress: %w", err)
	}

	existing.Spec = desired.Spec
	existing.Labels = desired.Labels
	existing.Annotations = desired.Annotations
	if err := r.Update(ctx, existing); err != nil {
		return fmt.Errorf("failed to update Ingress: %w", err)
	}

	return nil
}

// markUnresolved records a Blocked or Waiting phase when the connection
// source could not be resolved. The workload is left as-is: a previously
// healthy exporter keeps running with its last good configuration.
func (r *ExporterReconciler) markUnresolved(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
	phase charmsv1alpha1.Phase,
	cause error,
) error {
	exp.Status.Phase = phase
	exp.Status.Ready = false
	exp.Status.MongoDBSource = ""
	exp.Status.ObservedGeneration = exp.Generation
	exp.Status.Conditions = []metav1.Condition{
		{
			Type:               "Ready",
			Status:             metav1.ConditionFalse,
			Reason:             "SourceUnresolved",
			Message:            cause.Error(),
			ObservedGeneration: exp.Generation,
			LastTransitionTime: metav1.Now(),
		},
		{
			Type:               "MongoDBConnection",
			Status:             metav1.ConditionFalse,
			Reason:             sourceFailureReason(cause),
			Message:            cause.Error(),
			ObservedGeneration: exp.Generation,
			LastTransitionTime: metav1.Now(),
		},
	}

	if err := r.Status().Update(ctx, exp); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	monitoring.SetExporterInfo(exp.Name, exp.Namespace, string(phase))

	return nil
}

// sourceFailureReason maps a resolution error to a condition reason.
func sourceFailureReason(err error) string {
	switch {
	case IsPending(err):
		return "RelationPending"
	case errors.Is(err, ErrConflictingSources):
		return "ConflictingSources"
	case errors.Is(err, ErrMalformedURI):
		return "MalformedURI"
	default:
		return "NoMongoDBSource"
	}
}

// updateStatus updates the exporter status based on observed workload state.
func (r *ExporterReconciler) updateStatus(
	ctx context.Context,
	exp *charmsv1alpha1.MongoDBExporter,
	source *MongoDBSource,
) error {
	dp := &appsv1.Deployment{}
	err := r.Get(ctx, client.ObjectKey{Namespace: exp.Namespace, Name: exp.Name}, dp)
	if err != nil {
		if apierrors.IsNotFound(err) {
			// Deployment not created yet
			return nil
		}
		return fmt.Errorf("failed to get Deployment for status: %w", err)
	}

	exp.Status.Replicas = dp.Status.Replicas
	exp.Status.ReadyReplicas = dp.Status.ReadyReplicas
	exp.Status.Ready = dp.Status.ReadyReplicas == dp.Status.Replicas && dp.Status.Replicas > 0
	exp.Status.Phase = status.ComputePhase(dp.Status.ReadyReplicas, dp.Status.Replicas)
	exp.Status.MongoDBSource = source.Origin
	exp.Status.ObservedGeneration = exp.Generation
	exp.Status.Conditions = r.buildConditions(exp, dp, source)

	if err := r.Status().Update(ctx, exp); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	monitoring.SetExporterInfo(exp.Name, exp.Namespace, string(exp.Status.Phase))
	monitoring.SetExporterReplicas(exp.Name, exp.Namespace, dp.Status.Replicas, dp.Status.ReadyReplicas)

	return nil
}

// buildConditions creates status conditions based on observed state.
func (r *ExporterReconciler) buildConditions(
	exp *charmsv1alpha1.MongoDBExporter,
	dp *appsv1.Deployment,
	source *MongoDBSource,
) []metav1.Condition {
	readyCondition := metav1.Condition{
		Type:               "Ready",
		ObservedGeneration: exp.Generation,
		LastTransitionTime: metav1.Now(),
	}
	if dp.Status.ReadyReplicas == dp.Status.Replicas && dp.Status.Replicas > 0 {
		readyCondition.Status = metav1.ConditionTrue
		readyCondition.Reason = "AllReplicasReady"
		readyCondition.Message = fmt.Sprintf("All %d replicas are ready", dp.Status.ReadyReplicas)
	} else {
		readyCondition.Status = metav1.ConditionFalse
		readyCondition.Reason = "NotAllReplicasReady"
		readyCondition.Message = fmt.Sprintf("%d/%d replicas ready", dp.Status.ReadyReplicas, dp.Status.Replicas)
	}

	connReason := "ConfigProvided"
	connMessage := "connection URI from spec.mongodbURI"
	if source.Origin == charmsv1alpha1.MongoDBSourceRelation {
		connReason = "RelationProvided"
		connMessage = fmt.Sprintf("connection URI from secret %q", source.SecretName)
	}
	connCondition := metav1.Condition{
		Type:               "MongoDBConnection",
		Status:             metav1.ConditionTrue,
		Reason:             connReason,
		Message:            connMessage,
		ObservedGeneration: exp.Generation,
		LastTransitionTime: metav1.Now(),
	}

	return []metav1.Condition{readyCondition, connCondition}
}

// exportersForSecret maps a Secret event to the exporters consuming it as a
// relation source.
func (r *ExporterReconciler) exportersForSecret(
	ctx context.Context,
	obj client.Object,
) []reconcile.Request {
	list := &charmsv1alpha1.MongoDBExporterList{}
	if err := r.List(ctx, list, client.InNamespace(obj.GetNamespace())); err != nil {
		return nil
	}

	var requests []reconcile.Request
	for i := range list.Items {
		exp := &list.Items[i]
		if exp.Spec.MongoDB != nil && exp.Spec.MongoDB.SecretRef.Name == obj.GetName() {
			requests = append(requests, reconcile.Request{
				NamespacedName: types.NamespacedName{
					Namespace: exp.Namespace,
					Name:      exp.Name,
				},
			})
		}
	}
	return requests
}

// SetupWithManager sets up the controller with the Manager.
func (r *ExporterReconciler) SetupWithManager(mgr ctrl.Manager) error {
	builder := ctrl.NewControllerManagedBy(mgr).
		For(&charmsv1alpha1.MongoDBExporter{}).
		Owns(&appsv1.Deployment{}).
		Owns(&corev1.Service{}).
		Owns(&corev1.ConfigMap{}).
		Owns(&networkingv1.Ingress{}).
		Watches(&corev1.Secret{}, handler.EnqueueRequestsFromMapFunc(r.exportersForSecret))

	if r.ServiceMonitors {
		builder = builder.Owns(&promv1.ServiceMonitor{})
	}

	return builder.Complete(r)
}
