// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package applier

import (
	"context"
	"fmt"
	"log/slog"

	admissionv1 "k8s.io/api/admissionregistration/v1"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/manifest"
)

// Operation is the mutation applied to a descriptor.
type Operation string

const (
	// OpCreate creates the object.
	OpCreate Operation = "create"
	// OpPatch sends the descriptor body as a JSON merge patch.
	OpPatch Operation = "patch"
	// OpReplace reads the live resourceVersion and updates the full object.
	OpReplace Operation = "replace"
	// OpDelete deletes the object. A missing object counts as deleted.
	OpDelete Operation = "delete"
)

// Outcome is the result of applying one descriptor.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

var crdResource = schema.GroupVersionResource{
	Group:    "apiextensions.k8s.io",
	Version:  "v1",
	Resource: "customresourcedefinitions",
}

// Applier executes descriptors against the control plane. Built-in kinds go
// through the typed clientset, operator kinds through the dynamic client.
type Applier struct {
	typed     kubernetes.Interface
	dynamic   dynamic.Interface
	namespace string
}

// New returns an Applier that places namespaced descriptors without an
// explicit namespace into namespace.
func New(typed kubernetes.Interface, dyn dynamic.Interface, namespace string) *Applier {
	return &Applier{typed: typed, dynamic: dyn, namespace: namespace}
}

// Namespace returns the default namespace of the applier.
func (a *Applier) Namespace() string {
	return a.namespace
}

// Apply executes op for a single descriptor. Unsupported kinds are logged
// and reported as skipped with a nil error.
func (a *Applier) Apply(ctx context.Context, d *manifest.Descriptor, op Operation) (Outcome, error) {
	if d.Kind == manifest.KindUnsupported {
		slog.Info("skipping unsupported kind",
			"kind", d.RawKind(), "name", d.Name(), "operation", string(op))
		recordApply(d, op, OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	if err := d.Resolved(); err != nil {
		recordApply(d, op, OutcomeFailed)
		return OutcomeFailed, err
	}

	ns := a.resolveNamespace(d)
	if err := a.dispatch(ctx, d, op, ns); err != nil {
		if op == OpDelete && apierrors.IsNotFound(err) {
			slog.Debug("resource already absent", "kind", d.RawKind(), "name", d.Name(), "namespace", ns)
			recordApply(d, op, OutcomeApplied)
			return OutcomeApplied, nil
		}
		recordApply(d, op, OutcomeFailed)
		return OutcomeFailed, cerrors.FromAPIStatus(fmt.Sprintf("%s %s failed", op, d.Ref()), err)
	}

	slog.Info("resource applied",
		"kind", d.RawKind(), "name", d.Name(), "namespace", ns, "operation", string(op))
	recordApply(d, op, OutcomeApplied)
	return OutcomeApplied, nil
}

func (a *Applier) resolveNamespace(d *manifest.Descriptor) string {
	if d.Kind.IsClusterScoped() {
		d.SetNamespace("")
		return ""
	}
	if d.Namespace() == "" {
		d.SetNamespace(a.namespace)
	}
	return d.Namespace()
}

func (a *Applier) dispatch(ctx context.Context, d *manifest.Descriptor, op Operation, ns string) error {
	switch d.Kind {
	case manifest.KindDeployment:
		return applyTyped[appsv1.Deployment](ctx, a.typed.AppsV1().Deployments(ns), d, op)
	case manifest.KindStatefulSet:
		return applyTyped[appsv1.StatefulSet](ctx, a.typed.AppsV1().StatefulSets(ns), d, op)
	case manifest.KindService:
		return applyTyped[corev1.Service](ctx, a.typed.CoreV1().Services(ns), d, op)
	case manifest.KindServiceAccount:
		return applyTyped[corev1.ServiceAccount](ctx, a.typed.CoreV1().ServiceAccounts(ns), d, op)
	case manifest.KindSecret:
		return applyTyped[corev1.Secret](ctx, a.typed.CoreV1().Secrets(ns), d, op)
	case manifest.KindConfigMap:
		return applyTyped[corev1.ConfigMap](ctx, a.typed.CoreV1().ConfigMaps(ns), d, op)
	case manifest.KindClusterRole:
		return applyTyped[rbacv1.ClusterRole](ctx, a.typed.RbacV1().ClusterRoles(), d, op)
	case manifest.KindClusterRoleBinding:
		return applyTyped[rbacv1.ClusterRoleBinding](ctx, a.typed.RbacV1().ClusterRoleBindings(), d, op)
	case manifest.KindRole:
		return applyTyped[rbacv1.Role](ctx, a.typed.RbacV1().Roles(ns), d, op)
	case manifest.KindRoleBinding:
		return applyTyped[rbacv1.RoleBinding](ctx, a.typed.RbacV1().RoleBindings(ns), d, op)
	case manifest.KindMutatingWebhookConfiguration:
		return applyTyped[admissionv1.MutatingWebhookConfiguration](ctx,
			a.typed.AdmissionregistrationV1().MutatingWebhookConfigurations(), d, op)
	case manifest.KindValidatingWebhookConfiguration:
		return applyTyped[admissionv1.ValidatingWebhookConfiguration](ctx,
			a.typed.AdmissionregistrationV1().ValidatingWebhookConfigurations(), d, op)
	case manifest.KindCustomResourceDefinition:
		// CRDs are not served by the core clientset.
		return applyDynamic(ctx, a.dynamic.Resource(crdResource), d, op)
	case manifest.KindDatabaseCluster, manifest.KindBrokerCluster, manifest.KindBrokerUser,
		manifest.KindBrokerPermission, manifest.KindCertificateIssuer:
		gvr, ok := d.Resource()
		if !ok {
			return fmt.Errorf("no resource mapping for %s", d.GroupVersionKind())
		}
		return applyDynamic(ctx, a.dynamic.Resource(gvr).Namespace(ns), d, op)
	default:
		return fmt.Errorf("kind %s has no dispatch", d.Kind)
	}
}
