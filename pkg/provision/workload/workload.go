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

package workload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"

	"github.com/cloud-agnost/provisioner/pkg/defaults"
	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

// Kind is the controller type backing a workload.
type Kind string

const (
	KindDeployment  Kind = "Deployment"
	KindStatefulSet Kind = "StatefulSet"
)

// ReplicasAnnotation records the replica count a scale cycle restores.
const ReplicasAnnotation = "provisioner.cloudagnost.io/restore-replicas"

// Target addresses one workload controller.
type Target struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

func (t Target) String() string {
	return string(t.Kind) + "/" + t.Name
}

// Manager restarts and rescales Deployments and StatefulSets.
type Manager struct {
	rt  *provision.Runtime
	now func() time.Time
}

// NewManager returns a workload Manager.
func NewManager(rt *provision.Runtime) *Manager {
	return &Manager{rt: rt, now: time.Now}
}

// RolloutRestart stamps the Deployment pod template with the current time,
// which makes the controller replace pods one by one.
func (m *Manager) RolloutRestart(ctx context.Context, name string) error {
	if err := provision.ValidateName("name", name); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyWorkload, provision.OpRestart, name)

	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{provision.RestartAnnotation: provision.Timestamp(m.now())},
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return lc.Fail(fmt.Errorf("failed to encode restart patch: %w", err))
	}

	_, err = m.rt.Typed.AppsV1().Deployments(m.rt.Config.Namespace).Patch(ctx, name, types.MergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return lc.Fail(cerrors.FromAPIStatus(fmt.Sprintf("failed to restart Deployment %s", name), err))
	}
	slog.Info("rollout restart triggered", "deployment", name, "namespace", m.rt.Config.Namespace)
	return lc.Succeed()
}

// ScaleRestart scales the Deployment to zero, waits the settle interval and
// restores its previous replica count. Every pod is recreated.
func (m *Manager) ScaleRestart(ctx context.Context, name string) error {
	if err := provision.ValidateName("name", name); err != nil {
		return err
	}
	lc := provision.Begin(provision.FamilyWorkload, provision.OpRestart, name)

	if _, err := m.Cycle(ctx, Target{Kind: KindDeployment, Name: name}); err != nil {
		return lc.Fail(err)
	}
	return lc.Succeed()
}

// Locate finds the controller named name, trying a Deployment before a
// StatefulSet. When both exist the Deployment wins.
func (m *Manager) Locate(ctx context.Context, name string) (Target, error) {
	ns := m.rt.Config.Namespace

	_, depErr := m.rt.Typed.AppsV1().Deployments(ns).Get(ctx, name, metav1.GetOptions{})
	if depErr != nil && !apierrors.IsNotFound(depErr) {
		return Target{}, cerrors.FromAPIStatus(fmt.Sprintf("failed to read Deployment %s", name), depErr)
	}
	_, stsErr := m.rt.Typed.AppsV1().StatefulSets(ns).Get(ctx, name, metav1.GetOptions{})
	if stsErr != nil && !apierrors.IsNotFound(stsErr) {
		return Target{}, cerrors.FromAPIStatus(fmt.Sprintf("failed to read StatefulSet %s", name), stsErr)
	}

	switch {
	case depErr == nil && stsErr == nil:
		slog.Warn("both a Deployment and a StatefulSet match, using the Deployment", "name", name, "namespace", ns)
		return Target{Kind: KindDeployment, Name: name}, nil
	case depErr == nil:
		return Target{Kind: KindDeployment, Name: name}, nil
	case stsErr == nil:
		return Target{Kind: KindStatefulSet, Name: name}, nil
	default:
		return Target{}, cerrors.NewWithContext(cerrors.ErrCodeNotFound,
			fmt.Sprintf("no Deployment or StatefulSet named %s", name),
			map[string]any{"name": name, "namespace": ns})
	}
}

// Cycle scales t to zero, waits the settle interval and scales it back to
// its previous replica count, which it returns. An unset count counts as 1.
// The count is recorded on the object before scaling down, so a Cycle
// interrupted at zero is repaired by the next one. The scale-up runs even
// when ctx ends during the settle wait, bounded by its own request timeout.
func (m *Manager) Cycle(ctx context.Context, t Target) (int32, error) {
	prev, err := m.scaleDown(ctx, t)
	if err != nil {
		return 0, err
	}
	slog.Info("workload scaled down", "target", t.String(), "previous", prev)

	settleErr := m.rt.Settle(ctx)
	if settleErr != nil {
		slog.Warn("settle interrupted, restoring replicas now", "target", t.String(), "error", settleErr)
	}

	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaults.K8sRequestTimeout)
	defer cancel()
	if err := m.restore(restoreCtx, t, prev); err != nil {
		return prev, errors.Join(settleErr, err)
	}
	slog.Info("workload scaled up", "target", t.String(), "replicas", prev)
	return prev, settleErr
}

// scaleDown records the replica count in ReplicasAnnotation and sets it to
// zero. A workload already at zero that carries the annotation was left
// there by an interrupted cycle; its recorded count is kept.
func (m *Manager) scaleDown(ctx context.Context, t Target) (int32, error) {
	var prev int32
	err := m.mutate(ctx, t, func(meta *metav1.ObjectMeta, replicas **int32) error {
		prev = ptr.Deref(*replicas, 1)
		if recorded, ok := meta.Annotations[ReplicasAnnotation]; ok && prev == 0 {
			n, err := strconv.ParseInt(recorded, 10, 32)
			if err != nil {
				return cerrors.NewWithContext(cerrors.ErrCodeInvalidRequest,
					fmt.Sprintf("invalid %s annotation on %s", ReplicasAnnotation, t),
					map[string]any{"value": recorded})
			}
			prev = int32(n)
			slog.Warn("workload left at zero by an earlier cycle, restoring recorded count",
				"target", t.String(), "replicas", prev)
		}
		if meta.Annotations == nil {
			meta.Annotations = map[string]string{}
		}
		meta.Annotations[ReplicasAnnotation] = strconv.Itoa(int(prev))
		*replicas = ptr.To[int32](0)
		return nil
	})
	if err != nil {
		return 0, scaleError(fmt.Sprintf("failed to scale %s to 0", t), err)
	}
	return prev, nil
}

// restore sets the replica count back and drops ReplicasAnnotation.
func (m *Manager) restore(ctx context.Context, t Target, replicas int32) error {
	err := m.mutate(ctx, t, func(meta *metav1.ObjectMeta, r **int32) error {
		delete(meta.Annotations, ReplicasAnnotation)
		*r = ptr.To(replicas)
		return nil
	})
	if err != nil {
		return scaleError(fmt.Sprintf("failed to scale %s to %d", t, replicas), err)
	}
	return nil
}

// mutate reads t, applies fn to its metadata and replica count and writes
// it back.
func (m *Manager) mutate(ctx context.Context, t Target, fn func(*metav1.ObjectMeta, **int32) error) error {
	ns := m.rt.Config.Namespace
	apps := m.rt.Typed.AppsV1()

	switch t.Kind {
	case KindDeployment:
		d, err := apps.Deployments(ns).Get(ctx, t.Name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if err := fn(&d.ObjectMeta, &d.Spec.Replicas); err != nil {
			return err
		}
		_, err = apps.Deployments(ns).Update(ctx, d, metav1.UpdateOptions{})
		return err
	case KindStatefulSet:
		s, err := apps.StatefulSets(ns).Get(ctx, t.Name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if err := fn(&s.ObjectMeta, &s.Spec.Replicas); err != nil {
			return err
		}
		_, err = apps.StatefulSets(ns).Update(ctx, s, metav1.UpdateOptions{})
		return err
	default:
		return cerrors.New(cerrors.ErrCodeInvalidRequest, fmt.Sprintf("unsupported workload kind %q", t.Kind))
	}
}

// scaleError classifies control-plane failures and passes already
// classified errors through.
func scaleError(message string, err error) error {
	var se *cerrors.StructuredError
	if errors.As(err, &se) {
		return err
	}
	return cerrors.FromAPIStatus(message, err)
}
