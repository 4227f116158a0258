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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/utils/ptr"

	cerrors "github.com/cloud-agnost/provisioner/pkg/errors"
	"github.com/cloud-agnost/provisioner/pkg/k8s/client/clienttest"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

const ns = "ns"

func newManager(objs ...runtime.Object) (*Manager, *clienttest.Fake) {
	f := clienttest.New(objs)
	rt := provision.NewRuntime(f.Clients, provision.Config{Namespace: ns, PollInterval: time.Millisecond, PollTimeout: time.Second})
	return NewManager(rt), f
}

func deployment(name string, replicas *int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns},
		Spec:       appsv1.DeploymentSpec{Replicas: replicas},
	}
}

func statefulSet(name string, replicas *int32) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: ns},
		Spec:       appsv1.StatefulSetSpec{Replicas: replicas},
	}
}

// replicaUpdates returns the replica counts written by successive updates.
func replicaUpdates(t *testing.T, f *clienttest.Fake) []int32 {
	t.Helper()
	var out []int32
	for _, a := range f.Typed.Actions() {
		u, ok := a.(k8stesting.UpdateAction)
		if !ok || a.GetVerb() != "update" {
			continue
		}
		switch obj := u.GetObject().(type) {
		case *appsv1.Deployment:
			out = append(out, ptr.Deref(obj.Spec.Replicas, -1))
		case *appsv1.StatefulSet:
			out = append(out, ptr.Deref(obj.Spec.Replicas, -1))
		}
	}
	return out
}

func TestRolloutRestart(t *testing.T) {
	m, f := newManager(deployment("platform-core", ptr.To[int32](2)))
	m.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	require.NoError(t, m.RolloutRestart(context.Background(), "platform-core"))

	d, err := f.Typed.AppsV1().Deployments(ns).Get(context.Background(), "platform-core", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-04T05:06:07Z", d.Spec.Template.Annotations[provision.RestartAnnotation])
	assert.Equal(t, int32(2), *d.Spec.Replicas)
}

func TestRolloutRestartMissing(t *testing.T) {
	m, _ := newManager()
	err := m.RolloutRestart(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeNotFound))
}

func TestScaleRestartRestoresReplicas(t *testing.T) {
	m, f := newManager(deployment("studio", ptr.To[int32](4)))

	require.NoError(t, m.ScaleRestart(context.Background(), "studio"))
	assert.Equal(t, []int32{0, 4}, replicaUpdates(t, f))
}

func TestCycleUnsetReplicasRestoresOne(t *testing.T) {
	m, f := newManager(statefulSet("minio", nil))

	prev, err := m.Cycle(context.Background(), Target{Kind: KindStatefulSet, Name: "minio"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), prev)
	assert.Equal(t, []int32{0, 1}, replicaUpdates(t, f))
}

func TestCycleRestoresWhenSettleCancelled(t *testing.T) {
	f := clienttest.New([]runtime.Object{deployment("studio", ptr.To[int32](2))})
	m := NewManager(provision.NewRuntime(f.Clients, provision.Config{
		Namespace: ns, PollInterval: time.Millisecond, PollTimeout: time.Second, SettleInterval: time.Hour,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	f.Typed.PrependReactor("update", "deployments", func(k8stesting.Action) (bool, runtime.Object, error) {
		cancel()
		return false, nil, nil
	})

	prev, err := m.Cycle(ctx, Target{Kind: KindDeployment, Name: "studio"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), prev)
	assert.Equal(t, []int32{0, 2}, replicaUpdates(t, f))

	d, err := f.Typed.AppsV1().Deployments(ns).Get(context.Background(), "studio", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), *d.Spec.Replicas)
	assert.NotContains(t, d.Annotations, ReplicasAnnotation)
}

func TestCycleRepairsInterruptedCycle(t *testing.T) {
	stuck := deployment("studio", ptr.To[int32](0))
	stuck.Annotations = map[string]string{ReplicasAnnotation: "3"}
	m, f := newManager(stuck)

	prev, err := m.Cycle(context.Background(), Target{Kind: KindDeployment, Name: "studio"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), prev)
	assert.Equal(t, []int32{0, 3}, replicaUpdates(t, f))

	d, err := f.Typed.AppsV1().Deployments(ns).Get(context.Background(), "studio", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), *d.Spec.Replicas)
	assert.NotContains(t, d.Annotations, ReplicasAnnotation)
}

func TestCycleRecordsCountWhileDown(t *testing.T) {
	f := clienttest.New([]runtime.Object{statefulSet("minio", ptr.To[int32](4))})
	m := NewManager(provision.NewRuntime(f.Clients, provision.Config{Namespace: ns, PollInterval: time.Millisecond, PollTimeout: time.Second}))

	var recorded string
	f.Typed.PrependReactor("update", "statefulsets", func(a k8stesting.Action) (bool, runtime.Object, error) {
		s := a.(k8stesting.UpdateAction).GetObject().(*appsv1.StatefulSet)
		if ptr.Deref(s.Spec.Replicas, -1) == 0 {
			recorded = s.Annotations[ReplicasAnnotation]
		}
		return false, nil, nil
	})

	_, err := m.Cycle(context.Background(), Target{Kind: KindStatefulSet, Name: "minio"})
	require.NoError(t, err)
	assert.Equal(t, "4", recorded)
}

func TestCycleRejectsBadRecordedCount(t *testing.T) {
	stuck := deployment("studio", ptr.To[int32](0))
	stuck.Annotations = map[string]string{ReplicasAnnotation: "many"}
	m, f := newManager(stuck)

	_, err := m.Cycle(context.Background(), Target{Kind: KindDeployment, Name: "studio"})
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.ErrCodeInvalidRequest))
	assert.Empty(t, replicaUpdates(t, f))
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name    string
		objs    []runtime.Object
		want    Target
		wantErr cerrors.ErrorCode
	}{
		{
			name: "deployment",
			objs: []runtime.Object{deployment("minio", nil)},
			want: Target{Kind: KindDeployment, Name: "minio"},
		},
		{
			name: "statefulset",
			objs: []runtime.Object{statefulSet("minio", nil)},
			want: Target{Kind: KindStatefulSet, Name: "minio"},
		},
		{
			name: "both prefers deployment",
			objs: []runtime.Object{deployment("minio", nil), statefulSet("minio", nil)},
			want: Target{Kind: KindDeployment, Name: "minio"},
		},
		{
			name:    "neither",
			wantErr: cerrors.ErrCodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newManager(tt.objs...)
			got, err := m.Locate(context.Background(), "minio")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, cerrors.IsCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "StatefulSet/minio", Target{Kind: KindStatefulSet, Name: "minio"}.String())
}
